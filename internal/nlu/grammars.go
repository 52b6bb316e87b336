package nlu

// Entity types known to the default grammar set
const (
	EntityFoodItem           = "food_item"
	EntityFoodCategory       = "food_category"
	EntityQuantity           = "quantity"
	EntityTime               = "time"
	EntityDate               = "date"
	EntityNumber             = "number"
	EntityAllergen           = "allergen"
	EntityDietaryRestriction = "dietary_restriction"
	EntityPrice              = "price"
	EntityLocation           = "location"
)

const (
	chineseNumerals = `一|二|两|三|四|五|六|七|八|九|十|百|千|万|亿|零|壹|贰|叁|肆|伍|陆|柒|捌|玖|拾|佰|仟`
	measureWords    = `个|份|只|条|碗|盘|杯|瓶`
	clockSuffix     = `上午|下午|晚上|AM|PM`
)

var baseDishes = []string{
	"红烧肉", "清蒸鱼", "宫保鸡丁", "麻婆豆腐", "鱼香肉丝", "水煮鱼",
	"糖醋里脊", "烤鸭", "火锅", "面条", "米饭", "饺子", "包子",
}

func defaultConfidence(entityType string) float64 {
	switch entityType {
	case EntityFoodItem, EntityQuantity, EntityTime, EntityDate, EntityPrice:
		return 0.9
	default:
		return 0.7
	}
}

// DefaultGrammars returns the built-in grammar set. Extra dish names, for
// example from the menu catalog, are merged into the food_item vocabulary.
func DefaultGrammars(extraDishes ...string) []GrammarSpec {
	dishes := make([]string, 0, len(baseDishes)+len(extraDishes))
	dishes = append(dishes, baseDishes...)
	dishes = append(dishes, extraDishes...)

	return []GrammarSpec{
		{Type: EntityFoodItem, Kind: KindVocabulary, Words: dishes},
		{Type: EntityFoodCategory, Kind: KindVocabulary, Words: []string{
			"招牌菜", "特色菜", "凉菜", "热菜", "主食", "汤品", "甜品", "饮料", "酒水", "小吃",
		}},
		{Type: EntityQuantity, Kind: KindPattern, Patterns: []string{
			`(?:` + chineseNumerals + `)(?:` + measureWords + `)?`,
			`\d+(?:` + measureWords + `)?`,
		}},
		{Type: EntityTime, Kind: KindPattern, Patterns: []string{
			`\d+:\d+(?:` + clockSuffix + `)?`,
			`\d+点(?:\d+)?(?:分)?(?:` + clockSuffix + `)?`,
			`(?:早上|上午|中午|下午|晚上|凌晨)(?:\d+)?点(?:\d+)?(?:分)?`,
		}},
		{Type: EntityDate, Kind: KindPattern, Patterns: []string{
			`\d{4}-\d{2}-\d{2}`,
			`\d{2}/\d{2}/\d{4}`,
			`(?:明天|后天|今天|昨天|本周|下周|上个月|下个月|今年|明年)(?:\d+)?(?:号|日)?`,
		}},
		{Type: EntityNumber, Kind: KindPattern, Patterns: []string{
			`\d+`,
			`(?:` + chineseNumerals + `)`,
		}},
		{Type: EntityAllergen, Kind: KindVocabulary, Words: []string{
			"坚果", "花生", "海鲜", "虾", "蟹", "贝类", "牛奶", "鸡蛋", "小麦", "大豆", "麸质", "芝麻", "鱼", "蜂蜜",
		}},
		{Type: EntityDietaryRestriction, Kind: KindVocabulary, Words: []string{
			"素食", "纯素", "清真", "无麸质", "低糖", "低脂", "低卡路里", "减肥", "糖尿病", "高血压", "高血脂",
		}},
		{Type: EntityPrice, Kind: KindPattern, Patterns: []string{
			`\d+(?:\.\d+)?(?:元|块|角|分)`,
			`¥\d+(?:\.\d+)?`,
			`\$\d+(?:\.\d+)?`,
		}},
		{Type: EntityLocation, Kind: KindPattern, Patterns: []string{
			`(?:地址|位置|在哪里|怎么走|路线).+`,
		}},
	}
}

// DefaultEntityTypes lists every type of the built-in grammar set
func DefaultEntityTypes() []string {
	specs := DefaultGrammars()
	types := make([]string, 0, len(specs))
	for _, s := range specs {
		types = append(types, s.Type)
	}
	return types
}
