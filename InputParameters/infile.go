package InputParameters

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

/*
InFile is a "key = value" input file in the GetPot style:
'#' starts a comment, and a quoted value holds several whitespace separated
entries, as in

	fe_family = 'LAGRANGE LAGRANGE'

Keys are case insensitive.
*/
type InFile struct {
	v *viper.Viper
}

func newInFile() *InFile {
	v := viper.New()
	v.SetConfigType("properties")
	return &InFile{v: v}
}

func ReadInFile(filename string) (in *InFile, err error) {
	in = newInFile()
	in.v.SetConfigFile(filename)
	if err = in.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", filename, err)
	}
	return
}

func ParseInFile(data []byte) (in *InFile, err error) {
	in = newInFile()
	if err = in.v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("parsing input file: %w", err)
	}
	return
}

func (in *InFile) Has(key string) bool { return in.v.IsSet(key) }

func (in *InFile) Keys() (keys []string) {
	keys = in.v.AllKeys()
	sort.Strings(keys)
	return
}

func stripComment(s string) string {
	var quote rune
	for i, c := range s {
		switch {
		case quote == 0 && (c == '\'' || c == '"'):
			quote = c
		case c == quote:
			quote = 0
		case quote == 0 && c == '#':
			return s[:i]
		}
	}
	return s
}

// raw is the value of key with any trailing comment and enclosing quotes removed.
func (in *InFile) raw(key string) string {
	s := strings.TrimSpace(stripComment(in.v.GetString(key)))
	if n := len(s); n >= 2 && (s[0] == '\'' || s[0] == '"') && s[n-1] == s[0] {
		s = s[1 : n-1]
	}
	return s
}

// Size is the number of entries of key, zero when it is not set.
func (in *InFile) Size(key string) int {
	if !in.Has(key) {
		return 0
	}
	return len(strings.Fields(in.raw(key)))
}

func (in *InFile) Strings(key string) []string {
	return strings.Fields(in.raw(key))
}

// String is the whole unquoted value of key, or def when it is not set.
func (in *InFile) String(key, def string) string {
	if !in.Has(key) {
		return def
	}
	return in.raw(key)
}

// StringAt is entry i of key, or def when key has fewer entries.
func (in *InFile) StringAt(key string, i int, def string) string {
	fields := in.Strings(key)
	if i < 0 || i >= len(fields) {
		return def
	}
	return fields[i]
}

func (in *InFile) Float(key string, def float64) float64 {
	return in.FloatAt(key, 0, def)
}

func (in *InFile) FloatAt(key string, i int, def float64) float64 {
	s := in.StringAt(key, i, "")
	if len(s) == 0 {
		return def
	}
	f, err := cast.ToFloat64E(s)
	if err != nil {
		panic(fmt.Errorf("entry %d of %s = %q is not a number: %w", i, key, s, err))
	}
	return f
}

func (in *InFile) Floats(key string) (f []float64) {
	f = make([]float64, in.Size(key))
	for i := range f {
		f[i] = in.FloatAt(key, i, 0)
	}
	return
}

func (in *InFile) Int(key string, def int) int {
	return in.IntAt(key, 0, def)
}

func (in *InFile) IntAt(key string, i int, def int) int {
	s := in.StringAt(key, i, "")
	if len(s) == 0 {
		return def
	}
	n, err := cast.ToIntE(s)
	if err != nil {
		panic(fmt.Errorf("entry %d of %s = %q is not an integer: %w", i, key, s, err))
	}
	return n
}

func (in *InFile) Bool(key string, def bool) bool {
	s := in.StringAt(key, 0, "")
	if len(s) == 0 {
		return def
	}
	b, err := cast.ToBoolE(s)
	if err != nil {
		panic(fmt.Errorf("%s = %q is not a boolean: %w", key, s, err))
	}
	return b
}

/*
AdaptivityParametersFrom reads the adaptivity keys of an input file over
the defaults, under the names the YAML form uses.
*/
func AdaptivityParametersFrom(in *InFile) (ap *AdaptivityParameters, err error) {
	ap = NewAdaptivityParameters()
	ap.Title = in.String("title", ap.Title)
	ap.Domainfile = in.String("domainfile", ap.Domainfile)
	ap.Dim = in.Int("dimension", ap.Dim)
	ap.Elements = in.Int("elements", ap.Elements)
	ap.CoarseRefinements = in.Int("coarserefinements", ap.CoarseRefinements)
	ap.MaxAdaptiveSteps = in.Int("max_adaptivesteps", ap.MaxAdaptiveSteps)
	ap.GlobalTolerance = in.Float("global_tolerance", ap.GlobalTolerance)
	ap.NelemTarget = in.Int("nelem_target", ap.NelemTarget)
	ap.RefineFraction = in.Float("refine_fraction", ap.RefineFraction)
	ap.CoarsenFraction = in.Float("coarsen_fraction", ap.CoarsenFraction)
	ap.CoarsenThreshold = in.Float("coarsen_threshold", ap.CoarsenThreshold)
	ap.MaxHLevel = in.Int("max_h_level", ap.MaxHLevel)
	ap.RefineUniformly = in.Bool("refine_uniformly", ap.RefineUniformly)
	ap.IndicatorType = in.String("indicator_type", ap.IndicatorType)
	if in.Has("qoi_weights") {
		ap.QoIWeights = in.Floats("qoi_weights")
	}
	if err = ap.Validate(); err != nil {
		return nil, err
	}
	return
}
