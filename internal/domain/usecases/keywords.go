// Package usecases contains application business rules.
// Usecases orchestrate entities and depend on port interfaces only.
package usecases

import (
	"strings"

	"github.com/tablerag/tablerag-go/internal/domain/entities"
)

// The bilingual keyword tables below drive intent detection, retrieval
// re-scoring, synonym expansion and column-role resolution. They are ordered
// slices rather than maps so matching is deterministic.

type opPatterns struct {
	Op    entities.AggregationOp
	Terms []string
}

var aggregationPatterns = []opPatterns{
	{entities.AggSum, []string{"总", "求和", "合计", "累计", "总计", "sum", "total"}},
	{entities.AggMean, []string{"平均", "均值", "average", "mean"}},
	{entities.AggCount, []string{"计数", "统计", "数量", "个数", "count", "number of"}},
	{entities.AggMax, []string{"最大", "最高", "最多", "max", "maximum", "highest"}},
	{entities.AggMin, []string{"最小", "最低", "最少", "min", "minimum", "lowest"}},
}

var groupByTerms = []string{"按", "分组", "各", "每个", "by", "per", "each", "group by"}

var trendTerms = []string{"趋势", "变化", "走势", "trend", "change", "over time"}

type freqPatterns struct {
	Freq  entities.TrendFrequency
	Terms []string
}

var frequencyPatterns = []freqPatterns{
	{entities.FreqDay, []string{"日", "天", "day", "daily"}},
	{entities.FreqWeek, []string{"周", "星期", "week", "weekly"}},
	{entities.FreqMonth, []string{"月", "月份", "月度", "month", "monthly"}},
	{entities.FreqQuarter, []string{"季度", "quarter", "quarterly"}},
	{entities.FreqYear, []string{"年", "年度", "year", "yearly", "annual"}},
}

var rankingTerms = []string{"排名", "前", "后", "top", "bottom", "rank", "最"}

type growthPatterns struct {
	Type  string
	Terms []string
}

// Ordered so the more specific variants win over the generic one.
var growthTypePatterns = []growthPatterns{
	{entities.GrowthYoY, []string{"同比", "year-over-year", "yoy"}},
	{entities.GrowthMoM, []string{"环比", "month-over-month", "mom"}},
	{entities.GrowthGeneral, []string{"增长", "增速", "growth", "increase"}},
}

var textAnalysisTerms = []string{"关键词", "意见", "评论", "keyword", "comment", "text"}

var priceTerms = []string{"价格", "成本", "折扣", "清仓", "零售价", "price", "cost", "discount", "clearance"}

type rolePatterns struct {
	Role  string
	Terms []string
}

// dimensionPatterns detect group-by dimensions mentioned in a question.
// The matched role names land in Intent.MentionedColumns, still unbound.
var dimensionPatterns = []rolePatterns{
	{"geography", []string{"地区", "城市", "省份", "region", "city", "province"}},
	{"time", []string{"月", "年", "month", "year"}},
	{"product", []string{"产品", "商品", "product", "item", "sku"}},
	{"category", []string{"类别", "品类", "分类", "category", "type"}},
}

// coverageCategories are the role keywords the retriever extracts from a
// question to compute field coverage against candidate column names.
var coverageCategories = []rolePatterns{
	{"geography", []string{"地区", "城市", "省份", "区域", "region", "city"}},
	{"time", []string{"日期", "时间", "月", "年", "date", "time", "month", "year"}},
	{"sales", []string{"销售", "销量", "金额", "sales", "amount", "revenue"}},
	{"product", []string{"产品", "商品", "SKU", "product", "item"}},
	{"price", []string{"价格", "成本", "折扣", "清仓", "price", "cost", "discount"}},
	{"growth", []string{"增长", "同比", "环比", "趋势", "growth", "trend", "yoy"}},
	{"aggregation", []string{"总", "平均", "最大", "最小", "sum", "average", "total", "max", "min"}},
	{"ranking", []string{"排名", "前", "top", "bottom", "rank"}},
}

// aggregationStyleTerms gate the retriever's numeric-content bonus.
var aggregationStyleTerms = []string{"总", "平均", "求和", "统计", "sum", "average", "total"}

// synonymCategories expand summary text before embedding: when any synonym
// of a category appears, up to three sibling synonyms are appended so the
// embedding leans toward the category without the model knowing the domain.
var synonymCategories = []rolePatterns{
	{"geography", []string{"地区", "城市", "省份", "地市", "区域", "县", "区", "region", "city", "province"}},
	{"time", []string{"日期", "时间", "月份", "月度", "年度", "学年", "学期", "date", "time", "month", "year"}},
	{"sales", []string{"销售额", "净销售额", "销量", "销售数量", "单价", "售价", "价格", "成本", "清仓价", "建议零售价", "sales", "amount", "price", "cost"}},
	{"product", []string{"产品名称", "商品名称", "品类", "品牌", "规格", "箱规", "单位", "条形码", "商品编码", "product", "item", "sku", "brand"}},
	{"energy", []string{"发电量", "发电小时数", "运行时间", "故障小时数", "可利用率", "power", "generation", "runtime", "availability"}},
	{"fiscal", []string{"小学", "初中", "高中", "普通高中", "中职", "生均经费", "预算", "增长", "同比", "环比", "budget", "expenditure", "growth"}},
	{"academic", []string{"班级", "学号", "导师", "组别", "题目", "意见", "是否通过", "class", "student", "advisor", "group", "topic", "comment"}},
}

// roleResolutionPatterns back the keyword tier of column-role resolution in
// the plan compiler.
var roleResolutionPatterns = []rolePatterns{
	{"geography", []string{"地区", "城市", "省份", "区域", "region", "city", "province"}},
	{"time", []string{"日期", "时间", "月", "年", "date", "time", "month", "year"}},
	{"sales", []string{"销售", "销量", "金额", "sales", "amount", "revenue"}},
	{"product", []string{"产品", "商品", "product", "item", "name", "名称"}},
	{"price", []string{"价格", "成本", "清仓", "零售", "price", "cost", "clearance"}},
	{"text", []string{"意见", "评论", "备注", "comment", "note", "remark"}},
}

// roleTypeMapping backs the type tier of column-role resolution.
var roleTypeMapping = map[string]entities.ColumnType{
	"geography": entities.ColumnCategorical,
	"time":      entities.ColumnDate,
	"date":      entities.ColumnDate,
	"value":     entities.ColumnNumeric,
	"amount":    entities.ColumnNumeric,
	"sales":     entities.ColumnNumeric,
	"text":      entities.ColumnText,
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if t != "" && strings.Contains(s, t) {
			return true
		}
	}
	return false
}
