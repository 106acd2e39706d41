package directory

// Region names used by the fixed bounding-box classifier. Recipients
// reference these in their regions list; RegionGlobal in model is the
// any-region marker.
const (
	RegionAsiaPacific  = "asia_pacific"
	RegionNorthAmerica = "north_america"
	RegionPacific      = "pacific"
)

// Region classifies coordinates into a coarse region by fixed bounding
// boxes, first match wins. No reverse-geocoding; the mapping must stay
// deterministic for auditability.
func Region(lat, lon float64) string {
	switch {
	case lat >= 10 && lat <= 60 && lon >= 90 && lon <= 180:
		return RegionAsiaPacific
	case lat >= 10 && lat <= 72 && lon >= -170 && lon <= -50:
		return RegionNorthAmerica
	case lat >= -50 && lat < 10 && (lon >= 110 || lon <= -120):
		return RegionPacific
	default:
		return "global"
	}
}
