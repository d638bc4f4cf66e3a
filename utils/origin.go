package utils

import "strings"

// OriginList -> daftar origin dari CORS_ORIGIN (dipisah koma). "*" berarti
// semua origin diizinkan.
type OriginList struct {
	Any     bool
	allowed map[string]bool
}

func ParseOrigins(raw string) OriginList {
	l := OriginList{allowed: make(map[string]bool)}
	for _, o := range strings.Split(raw, ",") {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		switch o {
		case "":
		case "*":
			l.Any = true
		default:
			l.allowed[o] = true
		}
	}
	return l
}

func (l OriginList) Allows(origin string) bool {
	return l.Any || l.allowed[strings.TrimRight(origin, "/")]
}
