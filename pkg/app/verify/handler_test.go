package verify

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/deploymenttheory/go-avb/internal/device"
	"github.com/deploymenttheory/go-avb/internal/testonly"
	"github.com/deploymenttheory/go-avb/internal/types"
	"github.com/deploymenttheory/go-avb/pkg/app"
)

// writeDevice lays out a signed slot "_a" with a boot partition and returns
// its configuration.
func writeDevice(t *testing.T, rollback uint64) *device.Config {
	t.Helper()
	logrus.SetLevel(logrus.ErrorLevel)
	dir := t.TempDir()

	key := testonly.Key(t, 2048)
	keyPath := filepath.Join(dir, "key.avbpubkey")
	require.NoError(t, os.WriteFile(keyPath, testonly.PublicKeyBlob(t, key), 0o600))

	boot := []byte(strings.Repeat("k", 3072))
	main := &testonly.ImageBuilder{Algorithm: types.AlgorithmSHA256RSA2048, Key: key, RollbackIndex: rollback}
	main.AddHash("boot", []byte("salt"), boot, types.HashAlgorithmSHA256)
	main.AddCmdline("console=ttyMSM0", 0)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "vbmeta_a.img"), main.MustBuild(t), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "boot_a.img"), boot, 0o600))

	return &device.Config{
		PartitionsDir:   dir,
		TrustedKeys:     []string{keyPath},
		RollbackIndices: map[string]uint64{"0": 2},
	}
}

func TestHandle(t *testing.T) {
	tests := []struct {
		name     string
		rollback uint64
		skip     bool
		validate func(*testing.T, *Response)
	}{
		{
			name:     "verified slot",
			rollback: 3,
			validate: func(t *testing.T, resp *Response) {
				assert.True(t, resp.Verified)
				assert.Equal(t, "OK", resp.Result)
				assert.Equal(t, uint64(3072), resp.BootSize)
				assert.Len(t, resp.VBMetaDigest, 64)
				assert.Equal(t, []RollbackIndex{{Slot: 0, Value: 3}}, resp.RollbackIndexes)
				assert.Contains(t, resp.Cmdline, "androidboot.slot_suffix=_a")
			},
		},
		{
			name:     "without cmdline options",
			rollback: 2,
			skip:     true,
			validate: func(t *testing.T, resp *Response) {
				assert.True(t, resp.Verified)
				assert.Equal(t, "console=ttyMSM0", resp.Cmdline)
			},
		},
		{
			name:     "rollback violation",
			rollback: 1,
			validate: func(t *testing.T, resp *Response) {
				assert.False(t, resp.Verified)
				assert.Equal(t, "ERROR_ROLLBACK_INDEX", resp.Result)
				assert.Equal(t, "vbmeta_a", resp.FailedPartition)
				assert.NotEmpty(t, resp.Error)
				assert.Empty(t, resp.Cmdline)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &Request{
				Device:             writeDevice(t, tt.rollback),
				Slot:               app.SlotTarget{Suffix: "_a"},
				SkipCmdlineOptions: tt.skip,
			}
			resp, err := Handle(app.NewContext(), req)
			require.NoError(t, err)
			assert.Equal(t, "_a", resp.Slot)
			tt.validate(t, resp)
		})
	}
}

func TestHandleInvalidRequests(t *testing.T) {
	ctx := app.NewContext()

	_, err := Handle(ctx, &Request{})
	assert.Error(t, err)

	_, err = Handle(ctx, &Request{Device: &device.Config{PartitionsDir: t.TempDir()}, Slot: app.SlotTarget{Suffix: "_a/.."}})
	var appErr *app.CommonError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, app.ErrCodeInvalidInput, appErr.Code)

	_, err = Handle(ctx, &Request{Device: &device.Config{PartitionsDir: t.TempDir(), TrustedKeys: []string{"/nonexistent/key"}}})
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, app.ErrCodeDeviceAccess, appErr.Code)
}

func TestFormatOutput(t *testing.T) {
	resp, err := Handle(app.NewContext(), &Request{Device: writeDevice(t, 2), Slot: app.SlotTarget{Suffix: "_a"}})
	require.NoError(t, err)

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, FormatOutput(&buf, resp, "table"))
		out := buf.String()
		assert.Contains(t, out, "Result:")
		assert.Contains(t, out, "OK")
		assert.Contains(t, out, "3.0 KiB")
		assert.Contains(t, out, "ROLLBACK INDEX")
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, FormatOutput(&buf, resp, "json"))
		var decoded map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, true, decoded["verified"])
		assert.Equal(t, resp.VBMetaDigest, decoded["vbmeta_digest"])
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, FormatOutput(&buf, resp, "yaml"))
		var decoded map[string]any
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, "OK", decoded["result"])
	})

	t.Run("failure table", func(t *testing.T) {
		var buf bytes.Buffer
		failed := &Response{Result: "ERROR_VERIFICATION", FailedPartition: "boot", Error: "digest mismatch"}
		require.NoError(t, FormatOutput(&buf, failed, "table"))
		assert.Contains(t, buf.String(), "(none)")
		assert.Contains(t, buf.String(), "digest mismatch")
		assert.Equal(t, "Verification failed: ERROR_VERIFICATION", FormatSummary(failed))
	})

	assert.Error(t, FormatOutput(&bytes.Buffer{}, resp, "xml"))
}
