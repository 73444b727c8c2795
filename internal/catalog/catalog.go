// Package catalog holds the attribute descriptor table. A Catalog is built
// once at startup and handed to the components that need labels.
package catalog

import (
	"errors"
	"fmt"
	"sync"

	"roadsafety/internal/models"
)

var ErrUnknownAttribute = errors.New("unknown attribute")

var defaultLabels = map[string]string{
	models.AttrFatalPcKm:    "Fatalities per billion passenger-km",
	models.AttrFatalMIn:     "Fatalities per million inhabitants",
	models.AttrAccidAdjPcKm: "Accidents per billion passenger-km",
	models.AttrPKm:          "Billions of passenger-km",
	models.AttrCroadInvKm:   "Investment in roads construction per kilometer, €/km (2015 constant prices)",
	models.AttrCroadMaintKm: "Expenditure on roads maintenance per kilometer, €/km (2015 constant prices)",
	models.AttrPropMotorwa:  "Proportion of motorways over the total road network (%)",
	models.AttrPopulat:      "Population, in millions of inhabitants",
	models.AttrUnemploy:     "Unemployment rate (%)",
	models.AttrPetrolCar:    "Consumption of gasolina and petrol derivatives (tons) per tourism",
	models.AttrAlcohol:      "Alcohol consumption, in liters per capita (age > 15)",
	models.AttrMotIndex1000: "Motorization index, in cars per 1,000 inhabitants",
	models.AttrDenPopulat:   "Population density, inhabitants/km²",
	models.AttrCgdp:         "Gross Domestic Product (GDP), in € (2015 constant prices)",
	models.AttrCgdpCap:      "GDP per capita, in € (2015 constant prices)",
	models.AttrPrecipit:     "Average depth of rain water during a year (mm)",
	models.AttrPropElder:    "Proportion of people over 65 years (%)",
	models.AttrDPS:          "Demerit Point System (0: no; 1: yes)",
	models.AttrFreight:      "Freight transport, in billions of ton-km",
}

// Catalog is a read-only code -> label table.
type Catalog struct {
	mu          sync.RWMutex
	descriptors []models.AttributeDescriptor
	index       map[string]int
}

// New builds a catalog from the built-in labels. overrides replaces labels
// for known codes; an unknown code in overrides is an error.
func New(overrides map[string]string) (*Catalog, error) {
	c := &Catalog{index: make(map[string]int, len(models.AttributeCodes))}
	for _, code := range models.AttributeCodes {
		c.index[code] = len(c.descriptors)
		c.descriptors = append(c.descriptors, models.AttributeDescriptor{Code: code, Label: defaultLabels[code]})
	}
	for code, label := range overrides {
		i, ok := c.index[code]
		if !ok {
			return nil, fmt.Errorf("label override for %q: %w", code, ErrUnknownAttribute)
		}
		c.descriptors[i].Label = label
	}
	return c, nil
}

// Descriptors returns a copy of the table in source column order.
func (c *Catalog) Descriptors() []models.AttributeDescriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.AttributeDescriptor, len(c.descriptors))
	copy(out, c.descriptors)
	return out
}

// Lookup returns the descriptor for code.
func (c *Catalog) Lookup(code string) (models.AttributeDescriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.index[code]
	if !ok {
		return models.AttributeDescriptor{}, false
	}
	return c.descriptors[i], true
}

// Label returns the human label, falling back to the code itself.
func (c *Catalog) Label(code string) string {
	if d, ok := c.Lookup(code); ok {
		return d.Label
	}
	return code
}

// Validate returns ErrUnknownAttribute for codes not in the catalog.
func (c *Catalog) Validate(code string) error {
	if _, ok := c.Lookup(code); !ok {
		return fmt.Errorf("%q: %w", code, ErrUnknownAttribute)
	}
	return nil
}

// Close empties the table. Lookups after Close report unknown codes.
func (c *Catalog) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.descriptors = nil
	c.index = map[string]int{}
}
