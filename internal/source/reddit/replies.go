package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/JakeFAU/social-harvester/internal/social"
)

// moreChildrenBatch caps how many continuation ids go into one
// /api/morechildren call.
const moreChildrenBatch = 100

// PostReplies materializes the full reply tree of a post, expanding every
// continuation stub before returning. Order follows the tree walk; the
// harvester does not depend on reply ordering.
func (c *Client) PostReplies(ctx context.Context, post social.Post) ([]social.Reply, error) {
	var pages []listing
	path := fmt.Sprintf("/comments/%s", url.PathEscape(post.ID))
	query := url.Values{"limit": {"500"}, "raw_json": {"1"}}
	if err := c.getJSON(ctx, path, query, &pages); err != nil {
		return nil, err
	}
	// The endpoint returns [post listing, comment listing].
	if len(pages) < 2 {
		return nil, fmt.Errorf("comments for post %s: unexpected response shape", post.ID)
	}

	var replies []social.Reply
	var moreIDs []string
	if err := walkCommentTree(pages[1].Data.Children, &replies, &moreIDs); err != nil {
		return nil, fmt.Errorf("comments for post %s: %w", post.ID, err)
	}

	for len(moreIDs) > 0 {
		batch := moreIDs
		if len(batch) > moreChildrenBatch {
			batch = batch[:moreChildrenBatch]
		}
		moreIDs = moreIDs[len(batch):]

		things, err := c.moreChildren(ctx, post.ID, batch)
		if err != nil {
			return nil, fmt.Errorf("expand replies for post %s: %w", post.ID, err)
		}
		if err := walkCommentTree(things, &replies, &moreIDs); err != nil {
			return nil, fmt.Errorf("expand replies for post %s: %w", post.ID, err)
		}
	}
	return replies, nil
}

// walkCommentTree flattens nested comment things, collecting continuation
// ids for later expansion.
func walkCommentTree(children []thing, replies *[]social.Reply, moreIDs *[]string) error {
	for _, child := range children {
		switch child.Kind {
		case kindComment:
			var d commentData
			if err := json.Unmarshal(child.Data, &d); err != nil {
				return fmt.Errorf("decode comment: %w", err)
			}
			*replies = append(*replies, d.toReply())
			// Replies is either a nested listing or an empty string.
			if len(d.Replies) > 0 && d.Replies[0] == '{' {
				var nested listing
				if err := json.Unmarshal(d.Replies, &nested); err != nil {
					return fmt.Errorf("decode nested replies: %w", err)
				}
				if err := walkCommentTree(nested.Data.Children, replies, moreIDs); err != nil {
					return err
				}
			}
		case kindMore:
			var d moreData
			if err := json.Unmarshal(child.Data, &d); err != nil {
				return fmt.Errorf("decode continuation stub: %w", err)
			}
			*moreIDs = append(*moreIDs, d.Children...)
		}
	}
	return nil
}

type moreChildrenResponse struct {
	JSON struct {
		Data struct {
			Things []thing `json:"things"`
		} `json:"data"`
	} `json:"json"`
}

func (c *Client) moreChildren(ctx context.Context, postID string, ids []string) ([]thing, error) {
	query := url.Values{
		"link_id":  {postFullnamePrefix + postID},
		"children": {strings.Join(ids, ",")},
		"api_type": {"json"},
		"raw_json": {"1"},
	}
	var resp moreChildrenResponse
	if err := c.getJSON(ctx, "/api/morechildren", query, &resp); err != nil {
		return nil, err
	}
	return resp.JSON.Data.Things, nil
}
