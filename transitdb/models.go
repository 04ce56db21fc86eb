package transitdb

// StopGroup is a cluster of co-located stops.
type StopGroup struct {
	ID   int64
	Name string
}

// Stop is a boarding point.
type Stop struct {
	ID       int64
	SourceID string
	GroupID  *int64
	Code     string
	Alias    string
	Street   string
	Lat      float64
	Lon      float64
}

type LineType struct {
	ID           int64
	NameSingular string
	NamePlural   string
	Color        string
}

type Line struct {
	ID         int64
	Name       string
	LineTypeID int64
}

// Route is a variant of a line.
type Route struct {
	ID         int64
	LineID     int64
	IsCircular bool
	IsNight    bool
}

// DepartureRoute is a fixed stop pattern of a route.
type DepartureRoute struct {
	ID        int64
	RouteID   int64
	Signature string
	Color     string
}

// FullRouteStop is one stop of a route, shared by all its departure routes.
// TravelTime is the minutes from the previous stop.
type FullRouteStop struct {
	ID          int64
	RouteID     int64
	StopID      int64
	StopNumber  int
	TravelTime  int
	IsOptional  bool
	IsOnRequest bool
}

// Timetable is one scheduled start of a departure route, minutes after midnight.
type Timetable struct {
	ID               int64
	DepartureRouteID int64
	DepartureTime    int
}

// AdditionalStop activates an optional stop for one departure route.
type AdditionalStop struct {
	DepartureRouteID int64
	StopNumber       int
}

// GeometryPoint belongs to the segment starting at StopNumber.
type GeometryPoint struct {
	ID               int64
	DepartureRouteID int64
	StopNumber       int
	Lat              float64
	Lon              float64
}

type ImportMetadata struct {
	FileHash   string
	FileSource string
	ImportTime int64
}
