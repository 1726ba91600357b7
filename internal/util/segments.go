package util

import "unicode/utf8"

// GSM 03.38 basic set plus the extension table (extension chars count twice).
const (
	gsmBasic     = "@£$¥èéùìòÇ\nØø\rÅåΔ_ΦΓΛΩΠΨΣΘΞÆæßÉ !\"#¤%&'()*+,-./0123456789:;<=>?¡ABCDEFGHIJKLMNOPQRSTUVWXYZÄÖÑÜ§¿abcdefghijklmnopqrstuvwxyzäöñüà"
	gsmExtension = "^{}\\[~]|€\f"
)

var gsmBasicSet, gsmExtSet = runeSet(gsmBasic), runeSet(gsmExtension)

func runeSet(s string) map[rune]struct{} {
	m := make(map[rune]struct{}, utf8.RuneCountInString(s))
	for _, r := range s {
		m[r] = struct{}{}
	}
	return m
}

// Segments returns how many SMS parts text needs: 160/153 septets for GSM-7,
// 70/67 characters for UCS-2. Empty text is one segment.
func Segments(text string) int {
	units, gsm := 0, true
	for _, r := range text {
		if _, ok := gsmBasicSet[r]; ok {
			units++
			continue
		}
		if _, ok := gsmExtSet[r]; ok {
			units += 2
			continue
		}
		gsm = false
		break
	}

	single, multi := 160, 153
	if !gsm {
		units = utf8.RuneCountInString(text)
		single, multi = 70, 67
	}

	if units <= single {
		return 1
	}
	return (units + multi - 1) / multi
}
