package entities

type Variant struct {
	ID        string `json:"id"`
	Color     string `json:"color,omitempty"`
	Size      string `json:"size,omitempty"`
	Inventory int    `json:"inventory"`
}
