package main

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/joao-fontenele/foodflow/internal/domain"
)

//go:embed menu.json
var defaultMenu []byte

type menuEntry struct {
	domain.Restaurant
	Items []domain.MenuItem `json:"items"`
}

type menu []menuEntry

// loadMenu reads the catalog from path, or the built-in one when path is empty.
func loadMenu(path string) (menu, error) {
	data := defaultMenu
	if path != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("read menu: %w", err)
		}
	}

	var m menu
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode menu: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("menu: %w", err)
	}
	return m, nil
}

// validate rejects entries a cart could not hold: blank or repeated ids and
// negative prices or fees.
func (m menu) validate() error {
	restaurants := map[string]bool{}
	for i, entry := range m {
		switch {
		case entry.ID == "":
			return fmt.Errorf("restaurant #%d (%q) has no id", i+1, entry.Name)
		case restaurants[entry.ID]:
			return fmt.Errorf("restaurant %q is listed twice", entry.ID)
		case entry.DeliveryFee != nil && entry.DeliveryFee.IsNegative():
			return fmt.Errorf("restaurant %q has a negative delivery fee", entry.ID)
		}
		restaurants[entry.ID] = true

		items := map[string]bool{}
		for _, item := range entry.Items {
			switch {
			case item.ID == "":
				return fmt.Errorf("restaurant %q has an item without id (%q)", entry.ID, item.Name)
			case items[item.ID]:
				return fmt.Errorf("restaurant %q lists item %q twice", entry.ID, item.ID)
			case item.UnitPrice.IsNegative():
				return fmt.Errorf("item %q has a negative price", item.ID)
			}
			items[item.ID] = true
		}
	}
	return nil
}

func (m menu) lookup(restaurantID, itemID string) (domain.Restaurant, domain.MenuItem, error) {
	for _, entry := range m {
		if entry.ID != restaurantID {
			continue
		}
		for _, item := range entry.Items {
			if item.ID == itemID {
				return entry.Restaurant, item, nil
			}
		}
		return domain.Restaurant{}, domain.MenuItem{}, fmt.Errorf("%s has no item %q", entry.Name, itemID)
	}
	return domain.Restaurant{}, domain.MenuItem{}, fmt.Errorf("unknown restaurant %q", restaurantID)
}
