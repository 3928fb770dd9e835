package ipinfo

import (
	"encoding/json"
	"fmt"
	"io"
)

// Render writes info as a JSON object to w, indented unless compact.
// The document is valid JSON in every case, including when only the
// ip field is present.
func Render(w io.Writer, info *Info, compact bool) error {
	var data []byte
	var err error
	if compact {
		data, err = json.Marshal(info)
	} else {
		data, err = json.MarshalIndent(info, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	_, err = fmt.Fprintln(w, string(data))
	return err
}

// RenderText writes a human-readable listing, skipping absent fields.
func RenderText(w io.Writer, info *Info) {
	fmt.Fprintf(w, "IP Address:         %s\n", info.IP)
	if info.Bogon {
		fmt.Fprintf(w, "Bogon:              true\n")
		return
	}
	if info.Hostname != "" {
		fmt.Fprintf(w, "Hostname:           %s\n", info.Hostname)
	}
	if info.Org != "" {
		fmt.Fprintf(w, "Organization:       %s\n", info.Org)
	}
	if info.City != "" {
		fmt.Fprintf(w, "City:               %s\n", info.City)
	}
	if info.Region != "" {
		fmt.Fprintf(w, "Region:             %s\n", info.Region)
	}
	if info.Country != "" {
		fmt.Fprintf(w, "Country:            %s\n", info.Country)
	}
	if info.Postal != "" {
		fmt.Fprintf(w, "Postal:             %s\n", info.Postal)
	}
	if info.Loc != "" {
		fmt.Fprintf(w, "Location:           %s\n", info.Loc)
	}
	if info.Timezone != "" {
		fmt.Fprintf(w, "Timezone:           %s\n", info.Timezone)
	}
	if info.OSM != "" {
		fmt.Fprintf(w, "Map:                %s\n", info.OSM)
	}
}
