package bigkinds

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/Adithya-Monish-Kumar-K/related-questions/internal/news"
)

type envelope struct {
	Result       int             `json:"result"`
	Reason       string          `json:"reason"`
	ReturnObject json.RawMessage `json:"return_object"`
}

type searchArgument struct {
	Query       string            `json:"query,omitempty"`
	PublishedAt publishedAt       `json:"published_at"`
	Sort        map[string]string `json:"sort"`
	ReturnFrom  int               `json:"return_from"`
	ReturnSize  int               `json:"return_size"`
	Fields      []string          `json:"fields"`
}

type publishedAt struct {
	From  string `json:"from"`
	Until string `json:"until"`
}

type searchObject struct {
	TotalHits int             `json:"total_hits"`
	Documents []news.Document `json:"documents"`
}

type wordsResponse struct {
	Success bool `json:"success"`
	Result  struct {
		Words []struct {
			Word string `json:"word"`
		} `json:"words"`
	} `json:"result"`
}

type rankArgument struct {
	From   string `json:"from"`
	Until  string `json:"until"`
	Offset int    `json:"offset"`
}

type rankObject struct {
	Queries []struct {
		Query string `json:"query"`
		Count int    `json:"count"`
	} `json:"queries"`
}

func (c *Client) decodeEnvelope(endpoint string, env *envelope, out any) error {
	if env.Result != 0 {
		return &APIError{Endpoint: endpoint, Result: env.Result, Reason: env.Reason}
	}
	if len(env.ReturnObject) == 0 || string(env.ReturnObject) == "null" {
		return nil
	}
	return json.Unmarshal(env.ReturnObject, out)
}

// Search runs a news search sorted by date, newest first. The API's until
// bound is exclusive, so the inclusive end day is pushed forward by one.
func (c *Client) Search(ctx context.Context, query string, r news.DateRange, size int) (*news.SearchResult, error) {
	r = c.resolveRange(r)
	arg := searchArgument{
		Query: query,
		PublishedAt: publishedAt{
			From:  r.FromString(),
			Until: r.To.AddDate(0, 0, 1).Format(news.DateLayout),
		},
		Sort:       map[string]string{"date": "desc"},
		ReturnSize: size,
		Fields:     DefaultFields,
	}
	var obj searchObject
	err := c.call(ctx, endpointSearch, func(ctx context.Context) error {
		var env envelope
		if err := c.postJSON(ctx, endpointSearch, arg, &env); err != nil {
			return err
		}
		return c.decodeEnvelope(endpointSearch, &env, &obj)
	})
	if err != nil {
		return nil, err
	}
	c.logger.Debug("search completed", "query", query, "total_hits", obj.TotalHits, "returned", len(obj.Documents))
	return &news.SearchResult{Query: query, TotalHits: obj.TotalHits, Documents: obj.Documents}, nil
}

// RelatedKeywords returns words BigKinds associates with seed. An
// unsuccessful response yields an empty list.
func (c *Client) RelatedKeywords(ctx context.Context, seed string, r news.DateRange, max int) ([]string, error) {
	params := url.Values{"query": {seed}, "max": {itoa(max)}}
	return c.words(ctx, endpointRelated, params, r)
}

// TopNKeywords returns the most frequent words in articles matching query.
func (c *Client) TopNKeywords(ctx context.Context, query string, r news.DateRange, limit int) ([]string, error) {
	params := url.Values{"query": {query}, "limit": {itoa(limit)}}
	return c.words(ctx, endpointTopN, params, r)
}

func (c *Client) words(ctx context.Context, endpoint string, params url.Values, r news.DateRange) ([]string, error) {
	r = c.resolveRange(r)
	params.Set("date_from", r.FromString())
	params.Set("date_to", r.ToString())
	var resp wordsResponse
	err := c.call(ctx, endpoint, func(ctx context.Context) error {
		resp = wordsResponse{}
		return c.getJSON(ctx, endpoint, cloneValues(params), &resp)
	})
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		c.logger.Warn("keyword lookup unsuccessful", "endpoint", endpoint, "query", params.Get("query"))
		return []string{}, nil
	}
	words := make([]string, 0, len(resp.Result.Words))
	for _, w := range resp.Result.Words {
		words = append(words, w.Word)
	}
	return words, nil
}

// PopularKeywords returns the global query ranking over the last days,
// ranked from 1.
func (c *Client) PopularKeywords(ctx context.Context, days, limit int) ([]news.PopularKeyword, error) {
	now := c.now()
	arg := rankArgument{
		From:   now.AddDate(0, 0, -days).Format(news.DateLayout),
		Until:  now.AddDate(0, 0, 1).Format(news.DateLayout),
		Offset: limit,
	}
	var obj rankObject
	err := c.call(ctx, endpointRank, func(ctx context.Context) error {
		var env envelope
		if err := c.postJSON(ctx, endpointRank, arg, &env); err != nil {
			return err
		}
		return c.decodeEnvelope(endpointRank, &env, &obj)
	})
	if err != nil {
		return nil, err
	}
	queries := obj.Queries
	if limit >= 0 && len(queries) > limit {
		queries = queries[:limit]
	}
	out := make([]news.PopularKeyword, 0, len(queries))
	for i, q := range queries {
		out = append(out, news.PopularKeyword{Keyword: q.Query, Rank: i + 1, Count: q.Count})
	}
	return out, nil
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vs := range v {
		out[k] = append([]string(nil), vs...)
	}
	return out
}
