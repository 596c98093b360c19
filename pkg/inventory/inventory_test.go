package inventory

import (
	"strings"
	"testing"

	"github.com/ctc-oss/fapolicy-toolkit/pkg/pathfilter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	recA   = "/usr/bin/hostname 21664 1557584275 26532eeae676157e70231d911474e48d31085b5f2e511ce908349dbb02f0f69c 0100755 root root 0 0 0 X"
	recB   = "/usr/share/man/man1/dnsdomainname.1.gz 13 1557584275 0000000000000000000000000000000000000000000000000000000000000000 0120777 root root 0 1 0 hostname.1.gz"
	recC   = "/usr/lib/.build-id/a8/a7ee9d5002492edfc62e3e2e44149e981f9866 28 1557584275 0000000000000000000000000000000000000000000000000000000000000000 0120777 root root 0 0 0 ../../../../usr/bin/hostname"
	recD   = "/usr/bin/tar 459928 1595282074 7642954ec2d8cd43ac345eca0b4a20fc5d44811a309e62fa78340cce8cff10cc 0100755 root root 0 0 0 X"
	recDir = "/usr/lib64 4096 1595282074 0000000000000000000000000000000000000000000000000000000000000000 040755 root root 0 0 0 X"
)

func TestParseKeepsOnlyRegularNonConfigNonDocWithDigest(t *testing.T) {
	data := strings.Join([]string{recA, recB, recC, recD, recDir}, "\n")
	records, err := Parse(strings.NewReader(data), nil)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "/usr/bin/hostname", records[0].Path)
	assert.EqualValues(t, 21664, records[0].Size)
	assert.Equal(t, "26532eeae676157e70231d911474e48d31085b5f2e511ce908349dbb02f0f69c", records[0].Hash)

	assert.Equal(t, "/usr/bin/tar", records[1].Path)
}

func TestParseContainsNoFilesSkipped(t *testing.T) {
	data := "(contains no files)\n" + recA + "\n(contains no files)\n"
	records, err := Parse(strings.NewReader(data), nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestParseDedupesByPathFirstWins(t *testing.T) {
	dup := "/usr/bin/hostname 1 1 " + strings.Repeat("f", 64) + " 0100755 root root 0 0 0 X"
	data := recA + "\n" + dup + "\n"
	records, err := Parse(strings.NewReader(data), nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.EqualValues(t, 21664, records[0].Size)
}

func TestParseReportsParseFailedButKeepsGoing(t *testing.T) {
	data := "garbage line\n" + recA + "\n"
	records, err := Parse(strings.NewReader(data), nil)
	require.Error(t, err)
	var ierr *Error
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, ParseFailed, ierr.Kind)
	assert.Equal(t, 1, ierr.Line)
	require.Len(t, records, 1)
}

func TestParseAppliesPathFilter(t *testing.T) {
	f, err := pathfilter.Compile("+ /\n - /usr/bin\n")
	require.NoError(t, err)

	data := recA + "\n" + recD + "\n"
	records, perr := Parse(strings.NewReader(data), f)
	require.NoError(t, perr)
	assert.Empty(t, records)
}

func TestNewRPMReaderDefaults(t *testing.T) {
	r := NewRPMReader()
	assert.Equal(t, "rpm", r.Tool)
	assert.Equal(t, []string{"-qa", "--dump"}, r.Args)
}
