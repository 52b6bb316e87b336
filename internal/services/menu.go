package services

import (
	"strings"
)

// Dish is one item of the restaurant menu
type Dish struct {
	ID        string   `json:"id" yaml:"id"`
	Name      string   `json:"name" yaml:"name"`
	Category  string   `json:"category" yaml:"category"`
	Price     float64  `json:"price" yaml:"price"`
	Allergens []string `json:"allergens,omitempty" yaml:"allergens"`
	Signature bool     `json:"signature" yaml:"signature"`
	Available bool     `json:"available" yaml:"available"`
}

// MenuService is a read-only catalog of dishes
type MenuService struct {
	dishes []Dish
	byName map[string]Dish
}

// NewMenuService creates a catalog from the given dishes, falling back
// to the built-in menu when none are given
func NewMenuService(dishes ...Dish) *MenuService {
	if len(dishes) == 0 {
		dishes = defaultDishes()
	}
	ms := &MenuService{
		dishes: dishes,
		byName: make(map[string]Dish, len(dishes)),
	}
	for _, d := range dishes {
		ms.byName[d.Name] = d
	}
	return ms
}

func defaultDishes() []Dish {
	return []Dish{
		{ID: "d001", Name: "宫保鸡丁", Category: "招牌菜", Price: 38, Allergens: []string{"花生"}, Signature: true, Available: true},
		{ID: "d002", Name: "麻婆豆腐", Category: "招牌菜", Price: 28, Allergens: []string{"大豆"}, Signature: true, Available: true},
		{ID: "d003", Name: "鱼香肉丝", Category: "招牌菜", Price: 32, Signature: true, Available: true},
		{ID: "d004", Name: "糖醋排骨", Category: "招牌菜", Price: 48, Signature: true, Available: true},
		{ID: "d005", Name: "红烧肉", Category: "热菜", Price: 46, Available: true},
		{ID: "d006", Name: "清蒸鱼", Category: "热菜", Price: 68, Allergens: []string{"鱼"}, Available: true},
		{ID: "d007", Name: "水煮鱼", Category: "热菜", Price: 72, Allergens: []string{"鱼"}, Available: true},
		{ID: "d008", Name: "糖醋里脊", Category: "热菜", Price: 42, Available: true},
		{ID: "d009", Name: "烤鸭", Category: "特色菜", Price: 128, Available: true},
		{ID: "d010", Name: "火锅", Category: "特色菜", Price: 158, Available: true},
		{ID: "d011", Name: "面条", Category: "主食", Price: 18, Allergens: []string{"小麦"}, Available: true},
		{ID: "d012", Name: "米饭", Category: "主食", Price: 3, Available: true},
		{ID: "d013", Name: "饺子", Category: "主食", Price: 26, Allergens: []string{"小麦"}, Available: true},
		{ID: "d014", Name: "包子", Category: "小吃", Price: 12, Allergens: []string{"小麦"}, Available: true},
	}
}

// Dishes returns a copy of the whole catalog
func (ms *MenuService) Dishes() []Dish {
	out := make([]Dish, len(ms.dishes))
	copy(out, ms.dishes)
	return out
}

// Names returns every dish name in catalog order
func (ms *MenuService) Names() []string {
	names := make([]string, 0, len(ms.dishes))
	for _, d := range ms.dishes {
		names = append(names, d.Name)
	}
	return names
}

// Lookup finds a dish by its exact name
func (ms *MenuService) Lookup(name string) (Dish, bool) {
	d, ok := ms.byName[name]
	return d, ok
}

// Signatures returns the signature dishes in catalog order
func (ms *MenuService) Signatures() []Dish {
	var out []Dish
	for _, d := range ms.dishes {
		if d.Signature {
			out = append(out, d)
		}
	}
	return out
}

// SearchDishes searches dishes by name or category
func (ms *MenuService) SearchDishes(query string) []Dish {
	if query == "" {
		return ms.Dishes()
	}

	var results []Dish
	for _, d := range ms.dishes {
		if strings.Contains(d.Name, query) || strings.Contains(d.Category, query) {
			results = append(results, d)
		}
	}
	return results
}

// MinPrice returns the cheapest price on the menu, excluding side staples
// priced under the given floor
func (ms *MenuService) MinPrice(floor float64) float64 {
	lowest := 0.0
	for _, d := range ms.dishes {
		if d.Price < floor {
			continue
		}
		if lowest == 0 || d.Price < lowest {
			lowest = d.Price
		}
	}
	return lowest
}
