package model

type Passage struct {
	Reference string `json:"reference"`
	Text      string `json:"text"`
}

func (p *Passage) Empty() bool {
	return p == nil || p.Text == ""
}

// Readings is one day's lectionary. SecondReading is absent on most weekdays.
type Readings struct {
	Date          string   `json:"date"`
	Version       string   `json:"version"`
	FirstReading  Passage  `json:"first_reading"`
	Psalm         Passage  `json:"psalm"`
	SecondReading *Passage `json:"second_reading,omitempty"`
	Gospel        Passage  `json:"gospel"`
}
