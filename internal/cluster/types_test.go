package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfoRequestFormatsOneNamePerLine(t *testing.T) {
	got := infoRequest("node", "cluster-name")
	assert.Equal(t, "node\ncluster-name\n", string(got))
}

func TestParseInfoReplySplitsOnTabOrEquals(t *testing.T) {
	got := parseInfoReply("node\tBB9020011AC4202\npartition-generation=42\nbare-flag")
	assert.Equal(t, "BB9020011AC4202", got["node"])
	assert.Equal(t, "42", got["partition-generation"])
	assert.Equal(t, "", got["bare-flag"])
}

func TestParseInfoReplyIgnoresBlankLines(t *testing.T) {
	got := parseInfoReply("node=n1\n\n\ncluster-name=prod\n")
	assert.Len(t, got, 2)
}

func TestParseNamespaceGenerations(t *testing.T) {
	got := parseNamespaceGenerations(" test:7 ; other:3 ")
	assert.Equal(t, map[string]int64{"test": 7, "other": 3}, got)
}

func TestParseNamespaceGenerationsSkipsMalformedEntries(t *testing.T) {
	got := parseNamespaceGenerations("test:7;not-a-pair;other:not-a-number;;ok:1")
	assert.Equal(t, map[string]int64{"test": 7, "ok": 1}, got)
}

func TestParseNamespaceGenerationsEmpty(t *testing.T) {
	assert.Empty(t, parseNamespaceGenerations(""))
}

func TestParsePeers(t *testing.T) {
	assert.Equal(t, []string{"10.0.0.1:3000", "10.0.0.2:3000"}, parsePeers("10.0.0.1:3000;10.0.0.2:3000"))
	assert.Nil(t, parsePeers(""))
	assert.Nil(t, parsePeers("   "))
}
