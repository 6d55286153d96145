/*
flag Package set up cli flags shared across binaries

Usage:

	Flags listed in this package are shared across boundaries and binary-agnostic
	For binary dependent flags please define in their respective main package.
	Only main calls flag.Parse, tests never do.
*/

package flag

import (
	"flag"
)

const (
	FeedCli = "feed_cli"
	MockApi = "mock_api"
)

var (
	ServiceName    *string
	AppSettingPath *string
	ApiBaseUrl     *string
)

func init() {
	ServiceName = flag.String("service", FeedCli, "'feed_cli' or 'mock_api'")
	AppSettingPath = flag.String("app_setting", "app_setting/client_app_setting.yaml", "path to the client app setting yaml")
	ApiBaseUrl = flag.String("api", "", "overwrite the api base url of the app setting")
}
