package xic

// TimeUnit is the unit of all retention times in the output
const TimeUnit = "minutes"

// OutputMeta describes how the results of a batch are represented
type OutputMeta struct {
	Base64   bool   `json:"base64"`
	TimeUnit string `json:"timeunit"`
}

// Data is a batch of units sharing one OutputMeta
type Data struct {
	OutputMeta OutputMeta `json:"OutputMeta"`
	Content    []Unit     `json:"Content"`
}

// NewData returns a batch holding units
func NewData(units ...Unit) *Data {
	return &Data{Content: units}
}

// Clone returns a deep copy of d, so that the same queries can be
// extracted from several runs
func (d *Data) Clone() *Data {
	c := &Data{
		OutputMeta: d.OutputMeta,
		Content:    make([]Unit, len(d.Content)),
	}
	for i, u := range d.Content {
		c.Content[i] = u.Clone()
	}
	return c
}
