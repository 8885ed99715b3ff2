package utils

import (
	"net"
	"net/url"
	"strconv"
)

// NodePort returns the control port of node index: basePort + index + 1.
func NodePort(basePort, index int) int {
	return basePort + index + 1
}

// StartURL builds http://host:port/path?time=startTime for one node.
func StartURL(host string, port int, path string, startTime int64) string {
	u := url.URL{
		Scheme:   "http",
		Host:     net.JoinHostPort(host, strconv.Itoa(port)),
		Path:     path,
		RawQuery: "time=" + strconv.FormatInt(startTime, 10),
	}
	return u.String()
}

// ParseNodeCount parses the node count argument. Negative counts are rejected.
func ParseNodeCount(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, strconv.ErrRange
	}
	return n, nil
}
