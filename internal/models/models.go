package models

// Coordinate is a WGS84 point.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Vehicle holds the user-supplied vehicle description attached to a booking.
// Opaque to the tracker and the store.
type Vehicle struct {
	Make  string `json:"make"`
	Model string `json:"model"`
	Year  string `json:"year"`
	Issue string `json:"issue"`
}

// Mechanic is a read-only directory record. Defined once in the catalog,
// never mutated by booking, chat or rating flows.
type Mechanic struct {
	ID           string   `json:"id" yaml:"id"`
	Name         string   `json:"name" yaml:"name"`
	Rating       float64  `json:"rating" yaml:"rating"`
	Reviews      int      `json:"reviews" yaml:"reviews"`
	Specialty    string   `json:"specialty" yaml:"specialty"`
	Distance     float64  `json:"distance" yaml:"distance"`
	Price        int      `json:"price" yaml:"price"`
	Image        string   `json:"image" yaml:"image"`
	Lat          float64  `json:"lat" yaml:"lat"`
	Lng          float64  `json:"lng" yaml:"lng"`
	Available    bool     `json:"available" yaml:"available"`
	ResponseTime string   `json:"responseTime" yaml:"response_time"`
	Services     []string `json:"services" yaml:"services"`
	Phone        string   `json:"phone" yaml:"phone"`
	Address      string   `json:"address" yaml:"address"`
}

// Location returns the mechanic's catalog coordinate.
func (m *Mechanic) Location() Coordinate {
	return Coordinate{Lat: m.Lat, Lng: m.Lng}
}
