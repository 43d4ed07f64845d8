package upgrade

import (
	"fmt"
	"strconv"
	"strings"
)

// Version es una versión de plugin con formato YYYYMMDDXX[.NN].
type Version struct {
	Major int64
	Minor int64
}

// Zero es la versión de una instalación sin marcador.
var Zero = Version{}

// ParseVersion acepta "2015111904", "2015111904.01" o "" (Zero).
func ParseVersion(s string) (Version, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return Zero, nil
	}
	major, minor, hasMinor := strings.Cut(s, ".")
	var v Version
	var err error
	if v.Major, err = strconv.ParseInt(major, 10, 64); err != nil || v.Major < 0 {
		return Zero, fmt.Errorf("upgrade: invalid version %q", s)
	}
	if hasMinor {
		if v.Minor, err = parseMinor(minor); err != nil {
			return Zero, fmt.Errorf("upgrade: invalid version %q", s)
		}
	}
	return v, nil
}

// parseMinor lee la parte decimal con dos dígitos: ".1" es ".10" y ".010"
// es ".01". Más precisión que eso no se puede representar.
func parseMinor(s string) (int64, error) {
	if s == "" || strings.Trim(s, "0123456789") != "" {
		return 0, strconv.ErrSyntax
	}
	if len(s) > 2 {
		if strings.Trim(s[2:], "0") != "" {
			return 0, strconv.ErrRange
		}
		s = s[:2]
	}
	if len(s) == 1 {
		s += "0"
	}
	return strconv.ParseInt(s, 10, 64)
}

// MustParseVersion es ParseVersion para constantes.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

func (v Version) Compare(o Version) int {
	switch {
	case v.Major < o.Major:
		return -1
	case v.Major > o.Major:
		return 1
	case v.Minor < o.Minor:
		return -1
	case v.Minor > o.Minor:
		return 1
	}
	return 0
}

func (v Version) Less(o Version) bool { return v.Compare(o) < 0 }

func (v Version) IsZero() bool { return v == Zero }

// String usa dos dígitos de minor, como los números de versión del plugin.
func (v Version) String() string {
	if v.Minor == 0 {
		return strconv.FormatInt(v.Major, 10)
	}
	return fmt.Sprintf("%d.%02d", v.Major, v.Minor)
}
