package model

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode"
)

type Prayer string

const (
	Fajr    Prayer = "Fajr"
	Dhuhr   Prayer = "Dhuhr"
	Asr     Prayer = "Asr"
	Maghrib Prayer = "Maghrib"
	Isha    Prayer = "Isha"
)

// Prayers is the canonical set, in daily order.
var Prayers = [...]Prayer{Fajr, Dhuhr, Asr, Maghrib, Isha}

// MaxJummah caps the number of Friday times kept for one mosque.
const MaxJummah = 5

var prayerAliases = map[string]Prayer{
	"fajr":    Fajr,
	"fajar":   Fajr,
	"fajir":   Fajr,
	"subh":    Fajr,
	"dhuhr":   Dhuhr,
	"dhuhur":  Dhuhr,
	"duhr":    Dhuhr,
	"zuhr":    Dhuhr,
	"zuhur":   Dhuhr,
	"zohr":    Dhuhr,
	"asr":     Asr,
	"asar":    Asr,
	"maghrib": Maghrib,
	"magrib":  Maghrib,
	"maghreb": Maghrib,
	"isha":    Isha,
	"ishaa":   Isha,
	"esha":    Isha,
	"isha'a":  Isha,
}

// PrayerAliases returns every spelling recognised for p, canonical name first.
func PrayerAliases(p Prayer) []string {
	names := []string{strings.ToLower(string(p))}
	for alias, canonical := range prayerAliases {
		if canonical == p && alias != names[0] {
			names = append(names, alias)
		}
	}
	return names
}

// CanonicalPrayer maps a free-text label such as "Zuhr Jamaah" to the canonical prayer.
// The first word that is a known spelling wins.
func CanonicalPrayer(label string) (Prayer, bool) {
	words := strings.FieldsFunc(strings.ToLower(label), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
	for _, w := range words {
		if p, ok := prayerAliases[w]; ok {
			return p, true
		}
	}
	return "", false
}

// PrayerTimeSet maps a prayer to its normalized HH:MM jamaah time. A missing key means not found.
type PrayerTimeSet map[Prayer]string

// Set stores t for p unless p already has a time. It reports whether t was stored.
func (s PrayerTimeSet) Set(p Prayer, t string) bool {
	if t == "" {
		return false
	}
	if _, ok := s[p]; ok {
		return false
	}
	s[p] = t
	return true
}

func (s PrayerTimeSet) Found() int {
	n := 0
	for _, p := range Prayers {
		if s[p] != "" {
			n++
		}
	}
	return n
}

// MarshalJSON writes all five canonical keys in daily order, null when missing.
func (s PrayerTimeSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range Prayers {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(`"` + string(p) + `":`)
		if t, ok := s[p]; ok && t != "" {
			b, err := json.Marshal(t)
			if err != nil {
				return nil, err
			}
			buf.Write(b)
		} else {
			buf.WriteString("null")
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (s *PrayerTimeSet) UnmarshalJSON(data []byte) error {
	var raw map[string]*string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(PrayerTimeSet, len(raw))
	for name, t := range raw {
		if t == nil || *t == "" {
			continue
		}
		if p, ok := CanonicalPrayer(name); ok {
			out.Set(p, *t)
		}
	}
	*s = out
	return nil
}

// JummahTimes is an ordered, duplicate-free list of at most MaxJummah Friday times.
type JummahTimes []string

// NewJummahTimes keeps the first occurrence of each time, up to MaxJummah entries.
func NewJummahTimes(times ...string) JummahTimes {
	out := make(JummahTimes, 0, MaxJummah)
	seen := make(map[string]struct{}, len(times))
	for _, t := range times {
		if len(out) == MaxJummah {
			break
		}
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func (j JummahTimes) MarshalJSON() ([]byte, error) {
	if j == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(j))
}
