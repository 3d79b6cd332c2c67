package rb

import (
	"fmt"
	"sort"
	"strings"
)

// RBParameter is one sample of a parameter, a vector in general.
type RBParameter []float64

/*
RBParameters maps parameter names to samples. Most parameters carry a
single scalar sample; time or load stepping problems carry one sample per
step. Names iterate in lexicographic order.
*/
type RBParameters struct {
	values map[string][]RBParameter
}

func NewRBParameters() *RBParameters {
	return &RBParameters{values: make(map[string][]RBParameter)}
}

// SetValue replaces every sample of name with the single scalar v.
func (p *RBParameters) SetValue(name string, v float64) {
	p.values[name] = []RBParameter{{v}}
}

// SetSampleValue sets sample i of name, growing the sample list with zeros as needed.
func (p *RBParameters) SetSampleValue(name string, i int, v float64) {
	samples := p.values[name]
	for len(samples) <= i {
		samples = append(samples, RBParameter{0})
	}
	samples[i] = RBParameter{v}
	p.values[name] = samples
}

func (p *RBParameters) PushBackValue(name string, v float64) {
	p.values[name] = append(p.values[name], RBParameter{v})
}

// SetVectorValue sets sample 0 of name to a vector value.
func (p *RBParameters) SetVectorValue(name string, v []float64) {
	p.values[name] = []RBParameter{append(RBParameter(nil), v...)}
}

func (p *RBParameters) HasValue(name string) bool {
	_, ok := p.values[name]
	return ok
}

func (p *RBParameters) samples(name string) []RBParameter {
	samples, ok := p.values[name]
	if !ok {
		panic(fmt.Errorf("no parameter named %q in %v", name, p.Names()))
	}
	return samples
}

// Value is the scalar value of a single sample parameter.
func (p *RBParameters) Value(name string) float64 {
	samples := p.samples(name)
	if len(samples) != 1 {
		panic(fmt.Errorf("parameter %q has %d samples, Value needs exactly one", name, len(samples)))
	}
	return p.SampleValue(name, 0)
}

func (p *RBParameters) SampleValue(name string, i int) float64 {
	samples := p.samples(name)
	if i < 0 || i >= len(samples) {
		panic(fmt.Errorf("sample %d of parameter %q out of range [0,%d)", i, name, len(samples)))
	}
	if len(samples[i]) != 1 {
		panic(fmt.Errorf("sample %d of parameter %q is vector valued with %d entries", i, name, len(samples[i])))
	}
	return samples[i][0]
}

func (p *RBParameters) VectorValue(name string, i int) []float64 {
	samples := p.samples(name)
	if i < 0 || i >= len(samples) {
		panic(fmt.Errorf("sample %d of parameter %q out of range [0,%d)", i, name, len(samples)))
	}
	return samples[i]
}

func (p *RBParameters) Erase(name string) { delete(p.values, name) }

func (p *RBParameters) NParameters() int { return len(p.values) }

// NSamples is the largest sample count over the parameters, zero when empty.
func (p *RBParameters) NSamples() (n int) {
	for _, samples := range p.values {
		n = max(n, len(samples))
	}
	return
}

func (p *RBParameters) Names() (names []string) {
	for name := range p.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return
}

func (p *RBParameters) Clone() (c *RBParameters) {
	c = NewRBParameters()
	for name, samples := range p.values {
		cs := make([]RBParameter, len(samples))
		for i, s := range samples {
			cs[i] = append(RBParameter(nil), s...)
		}
		c.values[name] = cs
	}
	return
}

func (p *RBParameters) String() string {
	var b strings.Builder
	for _, name := range p.Names() {
		fmt.Fprintf(&b, "%s:", name)
		for _, s := range p.values[name] {
			if len(s) == 1 {
				fmt.Fprintf(&b, " %g", s[0])
			} else {
				fmt.Fprintf(&b, " %v", []float64(s))
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (p *RBParameters) Print() { fmt.Print(p.String()) }
