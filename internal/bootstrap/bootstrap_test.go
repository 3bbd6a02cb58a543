package bootstrap

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"donor-registry/internal/core/config"
	"donor-registry/internal/domain"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	c := &config.Config{}
	c.Log.Level = "error"
	c.App.Env = "test"
	c.DB.Driver = "sqlite"
	c.DB.DSN = filepath.Join(t.TempDir(), "donors.db")
	c.DB.AutoMigrate = true
	c.DB.LogLevel = "silent"
	c.JWT.Secret = "s"
	c.JWT.Issuer = "donor-registry"
	c.JWT.AccessTokenTTLMin = 5
	c.Serial.Scope = "day"
	c.Serial.Counter = "db"
	return c
}

func TestNew_WiresDBAndUsers(t *testing.T) {
	d, err := New(testConfig(t))
	require.NoError(t, err)
	defer d.Close()

	ctx := context.Background()
	_, err = d.Users.Create(ctx, "root", "root-pw", domain.AuthorityAdmin)
	require.NoError(t, err)
	tok, _, err := d.Users.Login(ctx, "root", "root-pw")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, d.JWT.TTL)
	assert.NotEmpty(t, tok.AccessToken)

	donors, err := d.Donors(ctx)
	require.NoError(t, err)
	rec, err := donors.Create(ctx, domain.DonorRecord{Name: "Li Na", SampleType: domain.SampleMarrow, Available: true})
	require.NoError(t, err)
	assert.Contains(t, rec.Serial, "_BM_001")
}

func TestDonors_RedisCounter(t *testing.T) {
	mr := miniredis.RunT(t)
	c := testConfig(t)
	c.Serial.Counter = "redis"
	c.Redis.Addr = mr.Addr()

	d, err := New(c)
	require.NoError(t, err)
	defer d.Close()

	donors, err := d.Donors(context.Background())
	require.NoError(t, err)
	rec, err := donors.Create(context.Background(), domain.DonorRecord{Name: "Li Na", SampleType: domain.SampleMarrow})
	require.NoError(t, err)
	assert.Contains(t, rec.Serial, "_BM_001")
	assert.Len(t, mr.Keys(), 1)
}

func TestDonors_RedisUnreachable(t *testing.T) {
	c := testConfig(t)
	c.Serial.Counter = "redis"
	c.Redis.Addr = "127.0.0.1:1"

	d, err := New(c)
	require.NoError(t, err)
	defer d.Close()

	_, err = d.Donors(context.Background())
	assert.Error(t, err)
}

func TestLimits(t *testing.T) {
	c := testConfig(t)
	c.App.HTTP.RequestTimeout = 3
	c.App.HTTP.MaxInFlight = 7
	d := &Deps{Cfg: c}
	l := d.Limits()
	assert.Equal(t, 3*time.Second, l.RequestTimeout)
	assert.EqualValues(t, 7, l.MaxInFlight)
}
