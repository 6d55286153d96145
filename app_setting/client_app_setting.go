package app_setting

import (
	"io/ioutil"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// This is the client setting for one feed client process.
type ClientAppSetting struct {
	// Base url of the remote api, e.g. https://example.com/api
	API_BASE_URL string `yaml:"API_BASE_URL"`
	// Number of posts requested per feed page. A shorter page ends pagination.
	PAGE_SIZE int `yaml:"PAGE_SIZE"`
	// Freshness of a feed scope, after which a read revalidates in background.
	FEED_TTL_SECOND int64 `yaml:"FEED_TTL_SECOND"`
	// Freshness of one post's comments.
	COMMENTS_TTL_SECOND int64 `yaml:"COMMENTS_TTL_SECOND"`
	// Freshness of cached authors.
	USERS_TTL_SECOND int64 `yaml:"USERS_TTL_SECOND"`
	// Freshness of a user search result.
	SEARCH_TTL_SECOND int64 `yaml:"SEARCH_TTL_SECOND"`
	// Quiescence window after the last keystroke before a search is sent.
	SEARCH_DEBOUNCE_MILLISECOND int64 `yaml:"SEARCH_DEBOUNCE_MILLISECOND"`
	// Max number of users returned by one search.
	SEARCH_LIMIT int `yaml:"SEARCH_LIMIT"`
	// Session expiry is checked every other interval.
	SESSION_CHECK_INTERVAL_SECOND int64 `yaml:"SESSION_CHECK_INTERVAL_SECOND"`
	// Lifetime of a session whose token carries no exp claim, counted from login.
	SESSION_LIFETIME_SECOND int64 `yaml:"SESSION_LIFETIME_SECOND"`
	// Persist cached entities to redis (REDIS_HOST/REDIS_PORT/REDIS_PASSWD) so
	// a restarted client starts warm.
	REDIS_PERSISTENCE bool `yaml:"REDIS_PERSISTENCE"`
	// Address of the dogstatsd agent, metrics are disabled when empty.
	STATSD_ADDR string `yaml:"STATSD_ADDR"`
}

func DefaultClientAppSetting() ClientAppSetting {
	return ClientAppSetting{
		API_BASE_URL:                  "http://localhost:8080/api",
		PAGE_SIZE:                     10,
		FEED_TTL_SECOND:               5,
		COMMENTS_TTL_SECOND:           5 * 60,
		USERS_TTL_SECOND:              5 * 60,
		SEARCH_TTL_SECOND:             60,
		SEARCH_DEBOUNCE_MILLISECOND:   500,
		SEARCH_LIMIT:                  10,
		SESSION_CHECK_INTERVAL_SECOND: 60,
		SESSION_LIFETIME_SECOND:       24 * 60 * 60,
	}
}

// ParseClientAppSetting reads the yaml at path on top of the defaults, so a
// setting file only needs the keys it overrides.
func ParseClientAppSetting(path string) (ClientAppSetting, error) {
	c := DefaultClientAppSetting()
	yamlFile, err := ioutil.ReadFile(path)
	if err != nil {
		return c, errors.Wrap(err, "cannot read app setting "+path)
	}
	if err = yaml.Unmarshal(yamlFile, &c); err != nil {
		return c, errors.Wrap(err, "cannot unmarshal app setting "+path)
	}
	if c.PAGE_SIZE <= 0 {
		return c, errors.New("PAGE_SIZE should be > 0")
	}
	return c, nil
}

func seconds(s int64) time.Duration { return time.Duration(s) * time.Second }

func (c ClientAppSetting) FeedTTL() time.Duration     { return seconds(c.FEED_TTL_SECOND) }
func (c ClientAppSetting) CommentsTTL() time.Duration { return seconds(c.COMMENTS_TTL_SECOND) }
func (c ClientAppSetting) UsersTTL() time.Duration    { return seconds(c.USERS_TTL_SECOND) }
func (c ClientAppSetting) SearchTTL() time.Duration   { return seconds(c.SEARCH_TTL_SECOND) }
func (c ClientAppSetting) SessionCheckInterval() time.Duration {
	return seconds(c.SESSION_CHECK_INTERVAL_SECOND)
}
func (c ClientAppSetting) SessionLifetime() time.Duration {
	return seconds(c.SESSION_LIFETIME_SECOND)
}
func (c ClientAppSetting) SearchDebounce() time.Duration {
	return time.Duration(c.SEARCH_DEBOUNCE_MILLISECOND) * time.Millisecond
}
