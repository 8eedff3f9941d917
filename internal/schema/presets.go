package schema

import (
	"fmt"
	"math"
)

// Log level names accepted by LogLevel and LogLevelFilter.
var (
	LogLevels       = []string{"trace", "debug", "info", "warn", "error"}
	LogLevelFilters = []string{"off", "trace", "debug", "info", "warn", "error"}
)

// Port returns an Integer definition accepting TCP/UDP port numbers from
// start to 65535.
func Port(start int64) *Integer {
	desc := "port number"
	if start > 0 {
		desc = fmt.Sprintf("port number which should be at least %d", start)
	}
	return &Integer{Min: Ptr(start), Max: Ptr(int64(math.MaxUint16)), Description: desc}
}

// LogLevel returns an Enum definition accepting a logging level name.
func LogLevel() *Enum {
	return &Enum{Items: append([]string(nil), LogLevels...), Description: "logging level"}
}

// LogLevelFilter returns an Enum definition accepting a level name or "off".
func LogLevelFilter() *Enum {
	return &Enum{Items: append([]string(nil), LogLevelFilters...), Description: "logging level filter"}
}

// IP returns a String definition accepting IPv4 and IPv6 addresses.
func IP() *String {
	return &String{Format: FormatIP, Description: "IP address"}
}

// SocketAddress returns a String definition accepting "<ip>:<port>".
func SocketAddress() *String {
	return &String{Format: FormatSocketAddress, Description: "socket address `<ip>:<port>`"}
}

// Number returns a definition accepting integers and floats within the
// optional inclusive bounds.
func Number(min, max *float64) *Either {
	i := &Integer{}
	if min != nil {
		i.Min = Ptr(int64(math.Ceil(*min)))
	}
	if max != nil {
		i.Max = Ptr(int64(math.Floor(*max)))
	}
	return &Either{Alternatives: []Definition{i, &Float{Min: min, Max: max}}}
}
