// Package category maps business-analysis categories to retrieval queries.
package category

import (
	"fmt"
	"slices"
	"strings"

	"github.com/poiesic/kbase/core"
)

// Document types the assembled contexts draw from.
const (
	TypeFramework = "framework"
	TypeCaseStudy = "case_study"
	TypeTemplate  = "template"
	TypeBenchmark = "benchmark"
)

// Result counts used by the fixed contexts.
const (
	ContextK   = 3
	BenchmarkK = 5
)

// HypothesisValidationQuery retrieves hypothesis validation methodology.
const HypothesisValidationQuery = "假设验证 关键假设 验证方法"

var queries = map[string]string{
	"demand":      "需求分析 目标用户 市场规模 用户验证",
	"resolution":  "解决方案 价值主张 产品内核 最小可行产品",
	"earning":     "商业模式 单位经济学 盈利能力 财务模型",
	"acquisition": "增长策略 客户获取 AARRR漏斗 规模化",
	"moat":        "竞争优势 壁垒 护城河 可防御性",
}

// Query returns the expanded query for a category. Lookup ignores case;
// an unknown category is used verbatim as the query.
func Query(category string) string {
	if q, ok := queries[strings.ToLower(category)]; ok {
		return q
	}
	return category
}

// Known reports whether category has an expansion.
func Known(category string) bool {
	_, ok := queries[strings.ToLower(category)]
	return ok
}

// Names returns the known categories in sorted order.
func Names() []string {
	names := make([]string, 0, len(queries))
	for name := range queries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// IndustryBenchmarkQuery returns the benchmark query for an industry.
func IndustryBenchmarkQuery(industry string) string {
	return fmt.Sprintf("%s 行业基准 指标 数据", industry)
}

// Join concatenates result contents separated by a blank line.
func Join(results []core.SearchResult) string {
	var b strings.Builder
	for _, result := range results {
		b.WriteString(result.Content)
		b.WriteString("\n\n")
	}
	return strings.TrimSpace(b.String())
}
