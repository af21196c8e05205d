// info.go (kept as types.go for history) implements the textual info
// sub-protocol used for topology discovery: "name=value;...\n"
// lines sent over the same connection type as data commands.
//
// Adapted from the PostJSON/GetJSON pair (a shared, timeout-bound
// request/response helper used for every node-to-node call); generalized
// from one-shot JSON-over-HTTP requests to line-oriented info requests over
// a pooled *conn.Connection.
package cluster

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dreamware/aerospike-go/internal/conn"
)

// infoRequest formats one or more info command names as the request body
// the server expects: each name on its own line.
func infoRequest(names ...string) []byte {
	var b strings.Builder
	for _, n := range names {
		b.WriteString(n)
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// sendInfo writes an info request over c and parses the "name=value;...\n"
// reply into a map, bounded by timeout. It is the building block every tend
// step (node id, partition-generation, peer list, cluster name) is built on.
func sendInfo(c *conn.Connection, timeout time.Duration, names ...string) (map[string]string, error) {
	if err := c.SetDeadline(timeout); err != nil {
		return nil, fmt.Errorf("aerospike: info set deadline: %w", err)
	}
	if _, err := c.Write(infoRequest(names...)); err != nil {
		return nil, fmt.Errorf("aerospike: info write: %w", err)
	}

	reply, err := readInfoReply(c)
	if err != nil {
		return nil, fmt.Errorf("aerospike: info read: %w", err)
	}
	return parseInfoReply(reply), nil
}

// readInfoReply reads newline-terminated lines until the peer closes its
// side of the stream. Real info replies are length-prefixed; this package
// treats that framing as the out-of-scope wire-format concern
// and relies on the peer (the real server, or a test fake) closing the
// connection once the reply has been fully written.
func readInfoReply(c *conn.Connection) (string, error) {
	scanner := bufio.NewScanner(connReader{c})
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return strings.Join(lines, "\n"), nil
}

// connReader adapts *conn.Connection to io.Reader for bufio.Scanner.
type connReader struct {
	c *conn.Connection
}

func (r connReader) Read(p []byte) (int, error) {
	return r.c.Read(p)
}

// parseInfoReply splits "name1=value1;...\nname2=value2;...\n" formatted
// text into a flat map. Each line's key is the info command name; each
// line's value is the raw "field=value;field=value" remainder, left for the
// caller to split further (see parsePeers, parseNamespaceGenerations).
func parseInfoReply(reply string) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		name, value, found := strings.Cut(line, "\t")
		if !found {
			name, value, found = strings.Cut(line, "=")
		}
		if !found {
			out[line] = ""
			continue
		}
		out[name] = value
	}
	return out
}

// parseNamespaceGenerations parses the "partition-generation" info reply
// value, "ns1:gen1;ns2:gen2;...", into a namespace->generation map. This is
// how a real client discovers which namespaces exist on the cluster at all:
// namespaces are configured server-side, not created by the first write a
// client happens to send, so the set of keys in the returned map is read as
// "every namespace currently known to this node". Malformed entries are
// skipped rather than failing the whole reply, since one misbehaving
// namespace shouldn't block discovery of the rest.
func parseNamespaceGenerations(value string) map[string]int64 {
	out := make(map[string]int64)
	for _, entry := range strings.Split(value, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		ns, genStr, found := strings.Cut(entry, ":")
		if !found {
			continue
		}
		gen, err := strconv.ParseInt(strings.TrimSpace(genStr), 10, 64)
		if err != nil {
			continue
		}
		out[strings.TrimSpace(ns)] = gen
	}
	return out
}

// parsePeers parses a "services"/"services-alumni" style reply
// ("host1:port1;host2:port2") into host:port strings.
func parsePeers(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ";")
	peers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			peers = append(peers, p)
		}
	}
	return peers
}
