package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"edgepulse/internal/domain/entity"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
)

// EmbedSource scrapes the provider's public embed pages. The pages carry a
// JSON state blob in a script tag, which is the preferred extraction path;
// when the page layout drifts, the adapter degrades to CSS selectors and,
// as a last resort, to readability text extraction with zeroed counts.
type EmbedSource struct {
	cfg    Config
	client *http.Client
}

// NewEmbedSource creates an embed adapter for the given config.
func NewEmbedSource(cfg Config) *EmbedSource {
	cfg.ApplyDefaults()
	return &EmbedSource{cfg: cfg, client: newHTTPClient(cfg)}
}

// Name returns the configured instance name.
func (e *EmbedSource) Name() string { return e.cfg.Name }

// Kind returns KindEmbed.
func (e *EmbedSource) Kind() Kind { return KindEmbed }

// FetchPost retrieves a post by scraping its embed page.
func (e *EmbedSource) FetchPost(ctx context.Context, ref entity.PostRef) (*entity.Post, error) {
	if err := entity.ValidatePostID(ref.ID); err != nil {
		return nil, err
	}

	username := ref.Username
	if username == "" {
		// The provider serves /i/status/<id> without knowing the author.
		username = "i"
	}
	endpoint := joinURL(e.cfg.BaseURL, username, "status", ref.ID)

	reqCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	body, err := fetchBody(reqCtx, e.client, e.cfg, endpoint)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse embed HTML: %w", err)
	}

	if post, err := e.parseStateScript(doc, ref); err == nil {
		return post, nil
	} else {
		slog.Debug("embed state script unusable, trying selectors",
			slog.String("source", e.cfg.Name),
			slog.String("ref", ref.String()),
			slog.Any("error", err))
	}

	if post, err := e.parseSelectors(doc, ref); err == nil {
		return post, nil
	} else {
		slog.Debug("embed selectors unusable, trying readability",
			slog.String("source", e.cfg.Name),
			slog.String("ref", ref.String()),
			slog.Any("error", err))
	}

	return e.parseReadability(body, endpoint, ref)
}

// FetchUser is not supported: embed pages serve single posts only.
func (e *EmbedSource) FetchUser(ctx context.Context, username string) (*entity.UserProfile, error) {
	return nil, fmt.Errorf("%w: %s serves posts only", entity.ErrNotSupported, e.cfg.Name)
}

// embedState mirrors the slice of the JSON state blob the adapter needs.
type embedState struct {
	Props struct {
		PageProps struct {
			Tweet embedTweet `json:"tweet"`
		} `json:"pageProps"`
	} `json:"props"`
}

type embedTweet struct {
	IDStr         string `json:"id_str"`
	Text          string `json:"text"`
	FullText      string `json:"full_text"`
	CreatedAt     string `json:"created_at"`
	FavoriteCount int64  `json:"favorite_count"`
	RetweetCount  int64  `json:"retweet_count"`
	ReplyCount    int64  `json:"reply_count"`
	User          struct {
		ScreenName     string `json:"screen_name"`
		Name           string `json:"name"`
		Verified       bool   `json:"verified"`
		FollowersCount int64  `json:"followers_count"`
		FriendsCount   int64  `json:"friends_count"`
	} `json:"user"`
}

// parseStateScript extracts the post from the page's JSON state blob.
func (e *EmbedSource) parseStateScript(doc *goquery.Document, ref entity.PostRef) (*entity.Post, error) {
	jsonText := doc.Find("script#__NEXT_DATA__").First().Text()
	if jsonText == "" {
		return nil, fmt.Errorf("state script tag not found")
	}

	var state embedState
	if err := json.Unmarshal([]byte(jsonText), &state); err != nil {
		return nil, fmt.Errorf("decode state script: %w", err)
	}

	tweet := state.Props.PageProps.Tweet
	if tweet.IDStr == "" {
		return nil, fmt.Errorf("state script has no post")
	}

	content := tweet.FullText
	if content == "" {
		content = tweet.Text
	}

	post := &entity.Post{
		ID:      tweet.IDStr,
		URL:     canonicalPostURL(tweet.User.ScreenName, tweet.IDStr),
		Content: content,
		Author: entity.Author{
			Username:       tweet.User.ScreenName,
			DisplayName:    tweet.User.Name,
			Verified:       tweet.User.Verified,
			FollowersCount: tweet.User.FollowersCount,
			FollowingCount: tweet.User.FriendsCount,
		},
		Engagement: entity.Engagement{
			Likes:   tweet.FavoriteCount,
			Reposts: tweet.RetweetCount,
			Replies: tweet.ReplyCount,
		},
		CreatedAt: parsePostTime(tweet.CreatedAt),
		Source:    e.cfg.Name,
	}

	if err := post.Validate(); err != nil {
		return nil, fmt.Errorf("state script post invalid: %w", err)
	}
	return post, nil
}

// parseSelectors scrapes the rendered markup directly. Engagement counts are
// best-effort; elements the page no longer renders simply stay zero.
func (e *EmbedSource) parseSelectors(doc *goquery.Document, ref entity.PostRef) (*entity.Post, error) {
	text := strings.TrimSpace(doc.Find(`[data-testid="tweetText"]`).First().Text())
	if text == "" {
		text = strings.TrimSpace(doc.Find("blockquote p").First().Text())
	}
	if text == "" {
		return nil, fmt.Errorf("no post text element found")
	}

	username := ref.Username
	if sel := doc.Find(`[data-testid="User-Name"] a`).First(); sel.Length() > 0 {
		if href, ok := sel.Attr("href"); ok {
			username = strings.Trim(strings.TrimPrefix(href, "https://x.com"), "/")
		}
	}
	displayName := strings.TrimSpace(doc.Find(`[data-testid="User-Name"] span`).First().Text())

	post := &entity.Post{
		ID:      ref.ID,
		URL:     canonicalPostURL(username, ref.ID),
		Content: text,
		Author: entity.Author{
			Username:    username,
			DisplayName: displayName,
		},
		Engagement: entity.Engagement{
			Likes:   parseCount(doc.Find(`[data-testid="like"]`).First().Text()),
			Reposts: parseCount(doc.Find(`[data-testid="retweet"]`).First().Text()),
			Replies: parseCount(doc.Find(`[data-testid="reply"]`).First().Text()),
		},
		CreatedAt: parsePostTime(doc.Find("time").First().AttrOr("datetime", "")),
		Source:    e.cfg.Name,
	}

	if err := post.Validate(); err != nil {
		return nil, fmt.Errorf("scraped post invalid: %w", err)
	}
	return post, nil
}

// parseReadability is the last-resort path: pull whatever text the page has
// and return it with zeroed engagement. Better a degraded post than none.
func (e *EmbedSource) parseReadability(body []byte, pageURL string, ref entity.PostRef) (*entity.Post, error) {
	parsed, _ := url.Parse(pageURL)
	article, err := readability.FromReader(bytes.NewReader(body), parsed)
	if err != nil {
		return nil, fmt.Errorf("readability extraction failed: %w", err)
	}

	content := strings.TrimSpace(article.TextContent)
	if content == "" {
		return nil, fmt.Errorf("no readable content in embed page")
	}
	if len(content) > 5000 {
		content = content[:5000]
	}

	username := ref.Username
	if username == "" {
		username = "unknown"
	}

	post := &entity.Post{
		ID:      ref.ID,
		URL:     canonicalPostURL(ref.Username, ref.ID),
		Content: content,
		Author: entity.Author{
			Username: username,
		},
		CreatedAt: time.Time{},
		Source:    e.cfg.Name,
	}

	if err := post.Validate(); err != nil {
		return nil, fmt.Errorf("readability post invalid: %w", err)
	}
	return post, nil
}

// parseCount parses the abbreviated counters the page renders ("1,234",
// "12.5K", "3M"). Anything unparseable counts as zero.
func parseCount(s string) int64 {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return 0
	}

	multiplier := int64(1)
	switch {
	case strings.HasSuffix(s, "K"), strings.HasSuffix(s, "k"):
		multiplier = 1_000
		s = s[:len(s)-1]
	case strings.HasSuffix(s, "M"), strings.HasSuffix(s, "m"):
		multiplier = 1_000_000
		s = s[:len(s)-1]
	}

	if multiplier == 1 {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0
		}
		return n
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int64(f * float64(multiplier))
}
