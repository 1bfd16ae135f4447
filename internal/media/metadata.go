package media

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/evanoberholster/imagemeta"
	"github.com/rs/zerolog/log"
)

// ImageMetadata is the subset of EXIF data used in caption prompts.
type ImageMetadata struct {
	Latitude  float64
	Longitude float64
	HasGPS    bool

	DateTaken time.Time
	HasDate   bool

	CameraMake  string
	CameraModel string
}

// ExtractImageMetadata reads EXIF data from an encoded image. Formats without
// EXIF yield an error; callers treat metadata as optional.
func ExtractImageMetadata(data []byte) (*ImageMetadata, error) {
	exifData, err := imagemeta.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode EXIF metadata: %w", err)
	}

	m := &ImageMetadata{}

	gps := exifData.GPS
	if gps.Latitude() != 0 || gps.Longitude() != 0 {
		m.Latitude = gps.Latitude()
		m.Longitude = gps.Longitude()
		m.HasGPS = true
	}

	// DateTimeOriginal, then CreateDate, then ModifyDate.
	for _, d := range []time.Time{exifData.DateTimeOriginal(), exifData.CreateDate(), exifData.ModifyDate()} {
		if !d.IsZero() {
			m.DateTaken = d
			m.HasDate = true
			break
		}
	}

	m.CameraMake = strings.TrimSpace(exifData.Make)
	m.CameraModel = strings.TrimSpace(exifData.Model)

	log.Debug().
		Bool("has_gps", m.HasGPS).
		Bool("has_date", m.HasDate).
		Str("camera", m.Camera()).
		Msg("Image metadata extracted")
	return m, nil
}

// Camera returns "Make Model" without duplicating the make when the model
// already starts with it.
func (m *ImageMetadata) Camera() string {
	if m.CameraModel == "" {
		return m.CameraMake
	}
	if m.CameraMake == "" || strings.HasPrefix(strings.ToLower(m.CameraModel), strings.ToLower(m.CameraMake)) {
		return m.CameraModel
	}
	return m.CameraMake + " " + m.CameraModel
}

// FormatMetadataContext formats the metadata as short lines for a prompt.
// It returns "" when nothing useful is known.
func (m *ImageMetadata) FormatMetadataContext() string {
	if m == nil {
		return ""
	}
	var lines []string
	if m.HasDate {
		lines = append(lines, fmt.Sprintf("- Taken: %s at %s", m.DateTaken.Format("Monday, January 2, 2006"), m.DateTaken.Format("3:04 PM")))
	}
	if m.HasGPS {
		lines = append(lines, fmt.Sprintf("- Location: %s", CoordinatesToDMS(m.Latitude, m.Longitude)))
	}
	if cam := m.Camera(); cam != "" {
		lines = append(lines, "- Camera: "+cam)
	}
	return strings.Join(lines, "\n")
}

// CoordinatesToDMS converts decimal degrees to degrees, minutes, seconds.
func CoordinatesToDMS(lat, lon float64) string {
	return dms(lat, "N", "S") + ", " + dms(lon, "E", "W")
}

func dms(v float64, pos, neg string) string {
	dir := pos
	if v < 0 {
		dir = neg
		v = -v
	}
	deg := int(v)
	minutes := (v - float64(deg)) * 60
	mins := int(minutes)
	secs := (minutes - float64(mins)) * 60
	return fmt.Sprintf("%d°%d'%.2f\"%s", deg, mins, secs, dir)
}
