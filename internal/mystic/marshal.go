package mystic

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/mysticd/internal/oleaut"
)

// StringSet is an unordered set of strings decoded from a SAFEARRAY.
type StringSet map[string]struct{}

// NewStringSet builds a set from values.
func NewStringSet(values ...string) StringSet {
	s := make(StringSet, len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return s
}

// Contains reports whether v is in the set.
func (s StringSet) Contains(v string) bool {
	_, ok := s[v]
	return ok
}

// Sorted returns the members in lexical order.
func (s StringSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Marshaller converts between automation handles and Go strings.
//
// Ownership rules: handles returned by ToHandle belong to the caller and must be passed
// to Release exactly once. Strings the native library writes to out parameters belong
// to the library; FromHandle only copies them. Arrays it writes to out parameters
// belong to the caller and must be passed to DestroyArray once decoded.
type Marshaller struct {
	auto oleaut.Automation
}

// NewMarshaller creates a marshaller on top of an automation backend.
func NewMarshaller(auto oleaut.Automation) *Marshaller {
	return &Marshaller{auto: auto}
}

// ToHandle allocates a new BSTR holding text.
func (m *Marshaller) ToHandle(text string) (oleaut.BSTR, error) {
	b, err := m.auto.AllocString(oleaut.Encode(text))
	if err != nil {
		return 0, fmt.Errorf("allocate BSTR: %w", err)
	}
	return b, nil
}

// FromHandle copies the contents of b. The null handle decodes to "".
func (m *Marshaller) FromHandle(b oleaut.BSTR) string {
	return oleaut.Decode(m.auto.StringData(b))
}

// Release frees a handle previously returned by ToHandle.
func (m *Marshaller) Release(b oleaut.BSTR) {
	m.auto.FreeString(b)
}

// WithHandle allocates text, passes the handle to fn and releases it afterwards.
func (m *Marshaller) WithHandle(text string, fn func(oleaut.BSTR) error) error {
	b, err := m.ToHandle(text)
	if err != nil {
		return err
	}
	defer m.Release(b)

	return fn(b)
}

// DestroyArray frees an array the native library handed over. A failure is logged,
// since the decoded values are already safe.
func (m *Marshaller) DestroyArray(a oleaut.SafeArray) {
	if err := m.auto.DestroyArray(a); err != nil {
		log.Warn().Err(err).Msg("Failed to destroy SAFEARRAY")
	}
}

// StringsFromArray decodes a SAFEARRAY of BSTR into a slice, preserving order.
//
// The array must not be null: a null array means the native library broke its own
// contract, and StringsFromArray panics rather than returning an error.
func (m *Marshaller) StringsFromArray(a oleaut.SafeArray) ([]string, error) {
	if a == 0 {
		panic("mystic: null SAFEARRAY passed to StringsFromArray")
	}

	lower, upper, err := m.auto.ArrayBounds(a)
	if err != nil {
		return nil, fmt.Errorf("read SAFEARRAY bounds: %w", err)
	}

	out := make([]string, 0, max(int(upper-lower+1), 0))
	for i := lower; i <= upper; i++ {
		b, err := m.auto.ArrayString(a, i)
		if err != nil {
			return nil, fmt.Errorf("read SAFEARRAY element %d: %w", i, err)
		}
		out = append(out, m.FromHandle(b))
		m.auto.FreeString(b)
	}
	return out, nil
}

// StringSetFromArray decodes a SAFEARRAY of BSTR into a set. Same precondition as
// StringsFromArray.
func (m *Marshaller) StringSetFromArray(a oleaut.SafeArray) (StringSet, error) {
	values, err := m.StringsFromArray(a)
	if err != nil {
		return nil, err
	}
	return NewStringSet(values...), nil
}
