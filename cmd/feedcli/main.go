package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/Luismorlan/feedsync/api"
	"github.com/Luismorlan/feedsync/app_setting"
	"github.com/Luismorlan/feedsync/cache"
	"github.com/Luismorlan/feedsync/engine"
	"github.com/Luismorlan/feedsync/engine/modules"
	"github.com/Luismorlan/feedsync/events"
	"github.com/Luismorlan/feedsync/feed"
	"github.com/Luismorlan/feedsync/model"
	"github.com/Luismorlan/feedsync/session"
	"github.com/Luismorlan/feedsync/utils"
	"github.com/Luismorlan/feedsync/utils/dotenv"
	Flag "github.com/Luismorlan/feedsync/utils/flag"
	Logger "github.com/Luismorlan/feedsync/utils/log"
	"github.com/Luismorlan/feedsync/utils/metrics"
)

const usage = `commands:
  feed | more | refresh | filter <all|admin|user> | user <id>
  like <post> | love <post> | save <post> | share <post> | delete <post>
  caption <post> <text> | tag <post> <tag> | untag <post> <tag>
  post <caption>
  comments <post> | comment <text> | reply <comment> <text> | uncomment <comment> | expand <comment>
  search <query> | me <name> | logout | quit`

// tokenSource authenticates the one call made before the session exists.
type tokenSource string

func (t tokenSource) Credential() (string, error) {
	if t == "" {
		return "", api.NewUnauthorized("FEEDSYNC_TOKEN is not set")
	}
	return string(t), nil
}

func newPersister(settings app_setting.ClientAppSetting) *cache.RedisStore {
	if !settings.REDIS_PERSISTENCE {
		return nil
	}
	store, err := cache.GetRedisStore(settings.UsersTTL())
	if err != nil {
		Logger.Log.Warn("redis persistence disabled: ", err)
		return nil
	}
	return store
}

func main() {
	flag.Parse()
	if err := dotenv.LoadDotEnvs(); err != nil {
		panic(err)
	}
	Logger.InitLogger()

	settings, err := app_setting.ParseClientAppSetting(*Flag.AppSettingPath)
	if err != nil {
		Logger.Log.Warn("use default settings: ", err)
		settings = app_setting.DefaultClientAppSetting()
	}
	if *Flag.ApiBaseUrl != "" {
		settings.API_BASE_URL = *Flag.ApiBaseUrl
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	token := os.Getenv("FEEDSYNC_TOKEN")
	me, err := api.NewClient(settings.API_BASE_URL, tokenSource(token)).Me(ctx)
	if err != nil {
		Logger.Log.Fatal("cannot log in: ", api.MessageOf(err))
	}

	bus := events.NewBus()
	defer bus.Close()
	sess := session.New(session.Options{Lifetime: settings.SessionLifetime(), Bus: bus})
	if err := sess.Init(token, me); err != nil {
		Logger.Log.Fatal("cannot start session: ", err)
	}

	opts := feed.Options{Settings: settings, Session: sess, Bus: bus}
	store := newPersister(settings)
	if store != nil {
		defer store.Close()
		opts.Persister = store
	}
	client := feed.NewClient(opts)
	defer client.Close()
	if store != nil {
		client.Warm(store.LoadScope)
	}

	statsd, err := metrics.NewDogStatsdClient(settings.STATSD_ADDR)
	if err != nil {
		Logger.Log.Warn("metrics disabled: ", err)
		statsd, _ = metrics.NewDogStatsdClient("")
	}
	e := engine.NewEngine([]engine.Module{
		// Reporter counts settled mutations, failed loads and expired sessions.
		modules.NewReporter(modules.ReporterConfig{Name: "reporter"}, statsd, bus),
		// SessionWatcher logs the user out once the credential expired.
		modules.NewSessionWatcher(modules.SessionWatcherConfig{
			Name:     "session_watcher",
			Interval: settings.SessionCheckInterval(),
		}, sess),
	}, bus)
	go e.Run(ctx)
	defer e.Shutdown()

	r := newRepl(ctx, client)
	defer r.close()
	fmt.Println(usage)
	scanner := bufio.NewScanner(os.Stdin)
	for fmt.Print("> "); scanner.Scan(); fmt.Print("> ") {
		if !r.exec(strings.TrimSpace(scanner.Text())) {
			return
		}
	}
}

type repl struct {
	ctx    context.Context
	client *feed.Client
	feed   *feed.Session
	thread *feed.Thread
	search *feed.Search
}

func newRepl(ctx context.Context, client *feed.Client) *repl {
	r := &repl{ctx: ctx, client: client, feed: client.OpenFeed(feed.Source{})}
	r.search = client.OpenSearch(func(v feed.SearchView) {
		if v.Loading {
			return
		}
		if v.Err != nil {
			fmt.Println("search failed:", api.MessageOf(v.Err))
			return
		}
		for _, u := range v.Users {
			fmt.Printf("  %s %s\n", u.Id, u.DisplayName())
		}
	})
	return r
}

func (r *repl) close() {
	r.feed.Close()
	if r.thread != nil {
		r.thread.Close()
	}
	r.search.Close()
}

// exec runs one command line and reports whether to go on.
func (r *repl) exec(line string) bool {
	if line == "" {
		return true
	}
	cmd, rest := line, ""
	if i := strings.IndexByte(line, ' '); i > 0 {
		cmd, rest = line[:i], strings.TrimSpace(line[i+1:])
	}
	arg, text := rest, ""
	if i := strings.IndexByte(rest, ' '); i > 0 {
		arg, text = rest[:i], strings.TrimSpace(rest[i+1:])
	}

	var err error
	switch cmd {
	case "quit":
		return false
	case "feed":
		r.printFeed()
	case "more":
		err = r.feed.LoadMore(r.ctx)
		r.printFeed()
	case "refresh":
		err = r.feed.RefreshScope(r.ctx)
		r.printFeed()
	case "filter":
		filter := api.FeedScope(arg)
		if arg == "all" {
			filter = api.FeedScopeAll
		}
		err = r.feed.SetFilter(r.ctx, filter)
		r.printFeed()
	case "user":
		r.feed.Close()
		r.feed = r.client.OpenFeed(feed.Source{UserId: arg})
		err = r.feed.LoadMore(r.ctx)
		r.printFeed()
	case "like":
		err = r.feed.React(r.ctx, arg, model.ReactionLike)
	case "love":
		err = r.feed.React(r.ctx, arg, model.ReactionLove)
	case "save":
		err = r.feed.ToggleSave(r.ctx, arg)
	case "share":
		err = r.feed.ToggleShare(r.ctx, arg)
	case "delete":
		err = r.feed.Delete(r.ctx, arg)
	case "caption":
		err = r.feed.EditCaption(r.ctx, arg, text)
	case "tag":
		err = r.feed.AddTag(r.ctx, arg, text)
	case "untag":
		err = r.feed.RemoveTag(r.ctx, arg, text)
	case "post":
		_, err = r.feed.CreatePost(r.ctx, api.NewPost{Caption: rest})
		r.printFeed()
	case "comments":
		if r.thread != nil {
			r.thread.Close()
		}
		r.thread = r.client.OpenThread(arg)
		err = r.thread.Load(r.ctx)
		r.printThread()
	case "comment", "reply", "uncomment", "expand":
		if r.thread == nil {
			fmt.Println("open a post's comments first")
			return true
		}
		switch cmd {
		case "comment":
			_, err = r.thread.AddComment(r.ctx, rest)
		case "reply":
			_, err = r.thread.Reply(r.ctx, arg, text)
		case "uncomment":
			err = r.thread.DeleteComment(r.ctx, arg)
		case "expand":
			r.thread.Toggle(arg)
		}
		r.printThread()
	case "search":
		r.search.Type(rest)
	case "me":
		_, err = r.client.UpdateProfile(r.ctx, rest, "")
	case "logout":
		r.client.Session.Teardown(session.ReasonLogout)
		return false
	default:
		fmt.Println(usage)
	}
	if err != nil {
		fmt.Println("error:", api.MessageOf(err))
	}
	return true
}

func (r *repl) printFeed() {
	view := r.feed.CurrentItems()
	for _, item := range view.Items {
		p := item.Post
		line := fmt.Sprintf("%s  %s: %s", p.Id, item.Author.DisplayName(), p.Caption)
		if item.OriginalAuthor != nil {
			line += fmt.Sprintf(" (shared from %s)", item.OriginalAuthor.DisplayName())
		}
		fmt.Println(line)
		tags := []string{}
		for _, t := range p.Tags {
			tags = append(tags, t+"("+utils.TagColor(t)+")")
		}
		fmt.Printf("    %d reactions, %d comments, %d shares, tags %v\n",
			p.ReactionCounts.Total(), p.CommentCount, p.ShareCount, tags)
	}
	if view.Loading {
		fmt.Println("loading...")
	} else if view.HasMore {
		fmt.Println("more available")
	}
}

func (r *repl) printThread() {
	tree := r.thread.Tree()
	for _, root := range tree.Roots {
		fmt.Printf("%s  %s: %s\n", root.Id, r.thread.Author(root.UserId).DisplayName(), root.Content)
		replies := tree.RepliesByRoot[root.Id]
		if !r.thread.IsExpanded(root.Id) {
			if len(replies) > 0 {
				fmt.Printf("    %d replies\n", len(replies))
			}
			continue
		}
		for _, c := range replies {
			fmt.Printf("    %s  %s: %s\n", c.Id, r.thread.Author(c.UserId).DisplayName(), c.Content)
		}
	}
}
