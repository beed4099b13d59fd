package dto

import "pharmaledger/internal/domain/importer"

// ImportRow is one loosely typed input row. Numbers may arrive as strings or numbers.
type ImportRow struct {
	Name         string `json:"name"`
	Quantity     Text   `json:"quantity"`
	MRP          Text   `json:"mrp"`
	CostPrice    Text   `json:"cost_price"`
	SellingPrice Text   `json:"selling_price"`
	ExpiryDate   string `json:"expiry_date"`
}

// ImportRequest is the JSON bulk import body.
type ImportRequest struct {
	Items []ImportRow `json:"items" binding:"required"`
}

// ToRows converts the body into importer rows; rows are numbered from 1.
func (r ImportRequest) ToRows() []importer.Row {
	rows := make([]importer.Row, 0, len(r.Items))
	for i, item := range r.Items {
		rows = append(rows, importer.Row{
			Line:         i + 1,
			Name:         item.Name,
			Quantity:     string(item.Quantity),
			MRP:          string(item.MRP),
			CostPrice:    string(item.CostPrice),
			SellingPrice: string(item.SellingPrice),
			ExpiryDate:   item.ExpiryDate,
		})
	}
	return rows
}
