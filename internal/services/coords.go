package services

import (
	"strings"

	"golang.org/x/text/language"
)

// countryCentroids holds approximate [longitude, latitude] centroids keyed by
// ISO 3166-1 alpha-2 code.
var countryCentroids = map[string][2]float64{
	"AE": {54.3, 23.9},
	"AR": {-64.0, -34.0},
	"AT": {14.6, 47.5},
	"AU": {133.8, -25.3},
	"BD": {90.4, 23.7},
	"BE": {4.5, 50.5},
	"BG": {25.5, 42.7},
	"BR": {-51.9, -14.2},
	"CA": {-106.3, 56.1},
	"CH": {8.2, 46.8},
	"CL": {-71.5, -35.7},
	"CN": {104.2, 35.9},
	"CO": {-74.3, 4.6},
	"CY": {33.4, 35.1},
	"CZ": {15.5, 49.8},
	"DE": {10.5, 51.2},
	"DK": {9.5, 56.3},
	"EE": {25.0, 58.6},
	"EG": {30.8, 26.8},
	"ES": {-3.7, 40.5},
	"FI": {25.7, 61.9},
	"FR": {2.2, 46.2},
	"GB": {-3.4, 55.4},
	"GR": {21.8, 39.1},
	"HK": {114.1, 22.4},
	"HR": {15.2, 45.1},
	"HU": {19.5, 47.2},
	"ID": {113.9, -0.8},
	"IE": {-8.2, 53.4},
	"IL": {34.9, 31.0},
	"IN": {78.9, 20.6},
	"IR": {53.7, 32.4},
	"IS": {-19.0, 65.0},
	"IT": {12.6, 41.9},
	"JP": {138.3, 36.2},
	"KE": {37.9, -0.0},
	"KR": {128.0, 35.9},
	"LT": {23.9, 55.2},
	"LU": {6.1, 49.8},
	"LV": {24.6, 56.9},
	"MA": {-7.1, 31.8},
	"MX": {-102.6, 23.6},
	"MY": {101.98, 4.2},
	"NG": {8.7, 9.1},
	"NL": {5.3, 52.1},
	"NO": {8.5, 60.5},
	"NZ": {174.9, -40.9},
	"PE": {-75.0, -9.2},
	"PH": {121.8, 12.9},
	"PK": {69.3, 30.4},
	"PL": {19.1, 51.9},
	"PT": {-8.2, 39.4},
	"RO": {24.97, 45.9},
	"RS": {21.0, 44.0},
	"RU": {105.3, 61.5},
	"SA": {45.1, 23.9},
	"SE": {18.6, 60.1},
	"SG": {103.8, 1.35},
	"SI": {14.99, 46.2},
	"SK": {19.7, 48.7},
	"TH": {100.99, 15.9},
	"TR": {35.2, 39.0},
	"TW": {120.96, 23.7},
	"UA": {31.2, 48.4},
	"US": {-95.7, 37.1},
	"VN": {108.3, 14.1},
	"ZA": {22.9, -30.6},
}

// CountryCoordinates returns the [longitude, latitude] centroid for a country
// code. Alpha-2, alpha-3 and numeric codes are accepted; unknown codes and the
// "Unknown" label yield ok=false.
func CountryCoordinates(code string) (lngLat [2]float64, ok bool) {
	code = strings.TrimSpace(code)
	if code == "" {
		return lngLat, false
	}
	region, err := language.ParseRegion(code)
	if err != nil {
		return lngLat, false
	}
	lngLat, ok = countryCentroids[region.Canonicalize().String()]
	return lngLat, ok
}
