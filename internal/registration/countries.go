package registration

import "strings"

// Country is a supported country of operation.
type Country struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

var supportedCountries = []Country{
	{Code: "LR", Name: "Liberia"},
	{Code: "SL", Name: "Sierra Leone"},
	{Code: "GN", Name: "Guinea"},
	{Code: "GH", Name: "Ghana"},
	{Code: "CI", Name: "Côte d'Ivoire"},
	{Code: "NG", Name: "Nigeria"},
	{Code: "SN", Name: "Senegal"},
	{Code: "GM", Name: "Gambia"},
}

// SupportedCountries lists the countries schools may register from.
func SupportedCountries() []Country {
	out := make([]Country, len(supportedCountries))
	copy(out, supportedCountries)
	return out
}

// CountryName resolves a country code; ok is false for unsupported codes.
func CountryName(code string) (string, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, c := range supportedCountries {
		if c.Code == code {
			return c.Name, true
		}
	}
	return "", false
}
