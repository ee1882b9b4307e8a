package asset

// Draft is the in-progress add-asset form. Nil fields have not been filled in.
type Draft struct {
	Ticker   *string  `json:"ticker,omitempty"`
	Name     *string  `json:"name,omitempty"`
	Quantity *float64 `json:"quantity,omitempty"`
	AvgPrice *float64 `json:"avgPrice,omitempty"`
	Source   Source   `json:"source,omitempty"`
}

// Patch carries the fields a receipt scan recognised.
type Patch struct {
	Ticker      *string
	CompanyName *string
	Quantity    *float64
	AvgPrice    *float64
}

// Apply overwrites only the fields present in p and returns the number of
// fields changed.
func (d *Draft) Apply(p Patch) int {
	n := 0
	if p.Ticker != nil {
		t := NormalizeTicker(*p.Ticker)
		d.Ticker = &t
		n++
	}
	if p.CompanyName != nil {
		name := *p.CompanyName
		d.Name = &name
		n++
	}
	if p.Quantity != nil {
		q := *p.Quantity
		d.Quantity = &q
		n++
	}
	if p.AvgPrice != nil {
		a := *p.AvgPrice
		d.AvgPrice = &a
		n++
	}
	return n
}

// Input converts the draft for submission. Missing numbers become zero.
func (d Draft) Input() Input {
	in := Input{Source: d.Source}
	if d.Ticker != nil {
		in.Ticker = *d.Ticker
	}
	if d.Name != nil {
		in.Name = *d.Name
	}
	if d.Quantity != nil {
		in.Quantity = *d.Quantity
	}
	if d.AvgPrice != nil {
		in.AvgPrice = *d.AvgPrice
	}
	return in
}
