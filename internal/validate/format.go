package validate

import (
	"net"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dshills/plugconf/internal/schema"
)

// checkFormat returns a reason when value does not satisfy format.
func checkFormat(value, format string) string {
	switch format {
	case schema.FormatIP:
		if net.ParseIP(value) == nil {
			return "invalid IP address"
		}
	case schema.FormatSocketAddress:
		host, port, err := net.SplitHostPort(value)
		if err != nil {
			return "invalid socket address: " + err.Error()
		}
		if net.ParseIP(host) == nil {
			return "invalid IP address in socket address"
		}
		if n, err := strconv.Atoi(port); err != nil || n < 0 || n > 65535 {
			return "invalid port in socket address"
		}
	case schema.FormatDuration:
		if _, err := time.ParseDuration(value); err != nil {
			return "invalid duration format"
		}
	case schema.FormatURI:
		if !strings.HasPrefix(value, "http://") && !strings.HasPrefix(value, "https://") &&
			!strings.HasPrefix(value, "file://") {
			return "invalid URI format"
		}
	case schema.FormatEmail:
		if _, err := mail.ParseAddress(value); err != nil {
			return "invalid email format"
		}
	case schema.FormatRegex:
		if _, err := regexp.Compile(value); err != nil {
			return "invalid regex"
		}
	}
	return ""
}
