package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/theofficialwebsiteguys/Dispensary-API/internal/model"
	"github.com/theofficialwebsiteguys/Dispensary-API/internal/pos"
)

var (
	thcPattern = regexp.MustCompile(`(?i)(\d{1,3}(\.\d{1,2})?% THC)`)
	tagPattern = regexp.MustCompile(`<[^>]+>`)
)

// GetAllProducts assembles the product catalog for a business from the POS
// inventory feed: sellable stock joined with per-item availability and
// catalog details.
func (s *Service) GetAllProducts(ctx context.Context, businessID int64) ([]model.Product, error) {
	if s.providers == nil {
		return nil, fmt.Errorf("no pos provider for business %d", businessID)
	}
	provider := s.providers.For(businessID)
	if provider == nil {
		return nil, fmt.Errorf("no pos provider for business %d", businessID)
	}

	token, err := provider.FetchToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("pos auth: %w", err)
	}

	inventory, err := provider.SearchInventory(ctx, token, []pos.InventoryFilter{
		{Field: "id_area", Value: 1000, Operator: "eq"},
		{Field: "has_available_inventory", Value: true, Operator: "eq"},
	})
	if err != nil {
		return nil, fmt.Errorf("search inventory: %w", err)
	}

	batches, err := provider.SearchBatches(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("search batches: %w", err)
	}
	available := make(map[int64]int64, len(batches))
	for _, b := range batches {
		available[b.IDItem] += b.Available
	}

	items, err := provider.SearchItems(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("search items: %w", err)
	}
	details := make(map[int64]pos.InventoryItem, len(items))
	for _, it := range items {
		details[it.IDItem] = it
	}

	products := make([]model.Product, 0, len(inventory))
	for _, inv := range inventory {
		det, ok := details[inv.IDItem]
		if !ok {
			det = inv
		}

		products = append(products, buildProduct(inv, det, available[inv.IDItem]))
	}

	return products, nil
}

// buildProduct maps one POS inventory row to a catalog entry.
func buildProduct(inv, det pos.InventoryItem, available int64) model.Product {
	desc := tagPattern.ReplaceAllString(det.ProductDescription, "")
	desc = strings.TrimSpace(desc)

	var thc *string
	if m := thcPattern.FindString(desc); m != "" {
		thc = &m
	}

	category := strings.ToUpper(inv.Category)
	image := firstImage(det)
	// Vape hardware is merchandised under concentrates and its stock photos
	// are unusable, so the image is dropped along with the category.
	if category == "VAPE" {
		category = "CONCENTRATES"
		image = ""
	}

	price := inv.PriceRetail
	if inv.PriceRetailAdult > 0 {
		price = inv.PriceRetailAdult
	}

	weight := ""
	if inv.WeightUseable > 0 {
		weight = strings.TrimRight(strings.TrimRight(
			fmt.Sprintf("%.2f", inv.WeightUseable), "0"), ".") + inv.WeightUseableUOM
	}

	return model.Product{
		PosProductID: inv.IDItem,
		Category:     category,
		Title:        inv.Item,
		Description:  desc,
		Brand:        inv.Brand,
		StrainType:   inv.Strain,
		THC:          thc,
		Weight:       weight,
		Price:        price,
		Quantity:     int(available),
		Image:        image,
	}
}

func firstImage(it pos.InventoryItem) string {
	if len(it.MediaList) == 0 {
		return ""
	}
	return it.MediaList[0].Content
}
