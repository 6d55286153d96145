package app_setting

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCheckedInSetting(t *testing.T) {
	c, err := ParseClientAppSetting("client_app_setting.yaml")
	require.Nil(t, err)
	assert.Equal(t, DefaultClientAppSetting(), c)
	assert.Equal(t, 5*time.Minute, c.CommentsTTL())
	assert.Equal(t, 500*time.Millisecond, c.SearchDebounce())
}

func TestParsePartialSettingKeepsDefaults(t *testing.T) {
	dir, err := ioutil.TempDir("", "app_setting")
	require.Nil(t, err)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "s.yaml")
	require.Nil(t, ioutil.WriteFile(path, []byte("PAGE_SIZE: 20\n"), 0644))

	c, err := ParseClientAppSetting(path)
	require.Nil(t, err)
	assert.Equal(t, 20, c.PAGE_SIZE)
	assert.Equal(t, time.Minute, c.SearchTTL())
}

func TestParseInvalidSetting(t *testing.T) {
	_, err := ParseClientAppSetting("does_not_exist.yaml")
	assert.Error(t, err)

	dir, err := ioutil.TempDir("", "app_setting")
	require.Nil(t, err)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "s.yaml")
	require.Nil(t, ioutil.WriteFile(path, []byte("PAGE_SIZE: 0\n"), 0644))
	_, err = ParseClientAppSetting(path)
	assert.Error(t, err)
}
