package export

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTarget(t *testing.T) {
	base := S3Configuration{AWSRegion: "eu-central-1"}

	testCases := []struct {
		name       string
		target     string
		driverType DriverType
		bucket     string
		prefix     string
		path       string
		wantErr    bool
	}{
		{name: "empty", target: "  ", driverType: None},
		{name: "directory", target: "./exports", driverType: DriverTypeLocal, path: "./exports"},
		{name: "bucket only", target: "s3://shim-data", driverType: DriverTypeAWSS3, bucket: "shim-data"},
		{name: "bucket with prefix", target: "s3://shim-data/console", driverType: DriverTypeAWSS3, bucket: "shim-data", prefix: "console/"},
		{name: "bucket missing", target: "s3:///console", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := ParseTarget(tc.target, base)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.driverType, cfg.DriverType)
			switch tc.driverType {
			case DriverTypeLocal:
				assert.Equal(t, tc.path, cfg.LocalConfiguration.BasePath)
			case DriverTypeAWSS3:
				assert.Equal(t, tc.bucket, cfg.S3Configuration.AWSBucketName)
				assert.Equal(t, tc.prefix, cfg.S3Configuration.KeyPrefix)
				assert.Equal(t, "eu-central-1", cfg.S3Configuration.AWSRegion)
			}
		})
	}
}

func TestFilesystem_Put(t *testing.T) {
	dir := t.TempDir()
	driver, err := New(context.Background(), Configuration{
		DriverType:         DriverTypeLocal,
		LocalConfiguration: &LocalConfiguration{BasePath: filepath.Join(dir, "exports")},
	})
	require.NoError(t, err)

	require.NoError(t, driver.Put(context.Background(), "Anna-fitbit-steps.json", []byte(`{"body":[]}`)))
	data, err := os.ReadFile(filepath.Join(dir, "exports", "Anna-fitbit-steps.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"body":[]}`, string(data))

	assert.Error(t, driver.Put(context.Background(), "../escape.json", []byte("x")))
	assert.Error(t, driver.Put(context.Background(), "", []byte("x")))
}

func TestNew_Disabled(t *testing.T) {
	driver, err := New(context.Background(), Configuration{})
	require.NoError(t, err)
	assert.Nil(t, driver)

	_, err = New(context.Background(), Configuration{DriverType: DriverTypeLocal})
	assert.Error(t, err)
}

func TestS3_Location(t *testing.T) {
	s := &S3{bucket: "shim-data", baseKeyName: "console/"}
	assert.Equal(t, "s3://shim-data/console/Anna.json", s.Location("Anna.json"))
}
