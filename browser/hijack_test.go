package browser

import (
	"testing"

	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
)

func TestBlockPolicyDecide(t *testing.T) {
	const (
		img   = proto.NetworkResourceTypeImage
		font  = proto.NetworkResourceTypeFont
		css   = proto.NetworkResourceTypeStylesheet
		doc   = proto.NetworkResourceTypeDocument
		xhr   = proto.NetworkResourceTypeXHR
		plain = "https://shop.example.com/page"
	)

	tests := []struct {
		name   string
		policy BlockPolicy
		typ    proto.NetworkResourceType
		url    string
		want   bool
	}{
		{"ultra fast blocks image", BlockPolicy{UltraFast: true}, img, "https://cdn.example.com/a.png", true},
		{"no flags allows image", BlockPolicy{}, img, "https://cdn.example.com/a.png", false},
		{"block media blocks image", BlockPolicy{BlockMedia: true}, img, "https://cdn.example.com/a.png", true},
		{"block fonts keeps image", BlockPolicy{BlockFonts: true}, img, "https://cdn.example.com/a.png", false},
		{"font by type", BlockPolicy{BlockFonts: true}, font, "https://cdn.example.com/f", true},
		{"font by extension", BlockPolicy{BlockFonts: true}, xhr, "https://cdn.example.com/f/Inter.WOFF2?v=3", true},
		{"font allowed without flag", BlockPolicy{BlockMedia: true}, font, "https://cdn.example.com/f.ttf", false},
		{"stylesheet only ultra fast", BlockPolicy{UltraFast: true}, css, "https://cdn.example.com/s.css", true},
		{"stylesheet kept on block media", BlockPolicy{BlockMedia: true, BlockFonts: true}, css, "https://cdn.example.com/s.css", false},
		{"document allowed", BlockPolicy{UltraFast: true}, doc, plain, false},
		{"facebook page allowed", BlockPolicy{UltraFast: true}, doc, "https://www.facebook.com/somebiz", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.policy.Decide(tt.typ, tt.url))
		})
	}
}

func TestTrackersBlockedUnderEveryFlagCombination(t *testing.T) {
	trackerURLs := []string{
		"https://www.google-analytics.com/collect?v=1",
		"https://www.googletagmanager.com/gtm.js?id=X",
		"https://www.facebook.com/tr?id=1&ev=PageView",
		"https://ad.doubleclick.net/ddm/activity",
		"https://analytics.google.com/g/collect",
		"https://stats.g.doubleclick.net/j/collect",
	}
	for _, ultra := range []bool{false, true} {
		for _, media := range []bool{false, true} {
			for _, fonts := range []bool{false, true} {
				p := BlockPolicy{UltraFast: ultra, BlockMedia: media, BlockFonts: fonts}
				for _, u := range trackerURLs {
					assert.True(t, p.Decide(proto.NetworkResourceTypeScript, u), "%+v %s", p, u)
				}
			}
		}
	}
}

func TestPolicyActive(t *testing.T) {
	assert.False(t, BlockPolicy{}.Active())
	assert.True(t, BlockPolicy{BlockFonts: true}.Active())
}

func paused(id string, typ proto.NetworkResourceType, url string) *proto.FetchRequestPaused {
	return &proto.FetchRequestPaused{
		RequestID:    proto.FetchRequestID(id),
		Request:      &proto.NetworkRequest{URL: url},
		ResourceType: typ,
	}
}

func TestInterceptorActivation(t *testing.T) {
	assert.False(t, interceptor{}.active())
	assert.True(t, interceptor{policy: BlockPolicy{BlockFonts: true}}.active())
	assert.True(t, interceptor{creds: &credentials{"u", "p"}}.active())

	assert.False(t, interceptor{policy: BlockPolicy{UltraFast: true}}.enable().HandleAuthRequests)
	assert.True(t, interceptor{creds: &credentials{"u", "p"}}.enable().HandleAuthRequests)
}

func TestInterceptorContinuesEveryRequestWithCredentialsOnly(t *testing.T) {
	i := interceptor{creds: &credentials{"user", "pw"}}
	for n, u := range []string{"https://a.example.com/", "https://a.example.com/b.png", "https://www.google-analytics.com/collect"} {
		cmd := i.onPaused(paused(string(rune('a'+n)), proto.NetworkResourceTypeImage, u))
		assert.Equal(t, proto.FetchContinueRequest{RequestID: proto.FetchRequestID(string(rune('a' + n)))}, cmd)
	}
}

func TestInterceptorAppliesPolicy(t *testing.T) {
	i := interceptor{policy: BlockPolicy{BlockMedia: true}, creds: &credentials{"user", "pw"}}

	assert.Equal(t, proto.FetchFailRequest{RequestID: "1", ErrorReason: proto.NetworkErrorReasonBlockedByClient},
		i.onPaused(paused("1", proto.NetworkResourceTypeImage, "https://cdn.example.com/a.png")))
	assert.Equal(t, proto.FetchContinueRequest{RequestID: "2"},
		i.onPaused(paused("2", proto.NetworkResourceTypeDocument, "https://shop.example.com/")))
}

func TestInterceptorAnswersEveryProxyChallenge(t *testing.T) {
	i := interceptor{creds: &credentials{"user", "pw"}}
	for _, id := range []proto.FetchRequestID{"1", "2", "3"} {
		cmd := i.onAuth(&proto.FetchAuthRequired{
			RequestID:     id,
			AuthChallenge: &proto.FetchAuthChallenge{Source: proto.FetchAuthChallengeSourceProxy},
		})
		assert.Equal(t, proto.FetchContinueWithAuth{
			RequestID: id,
			AuthChallengeResponse: &proto.FetchAuthChallengeResponse{
				Response: proto.FetchAuthChallengeResponseResponseProvideCredentials,
				Username: "user",
				Password: "pw",
			},
		}, cmd)
	}

	server := i.onAuth(&proto.FetchAuthRequired{
		RequestID:     "4",
		AuthChallenge: &proto.FetchAuthChallenge{Source: proto.FetchAuthChallengeSourceServer},
	})
	assert.Equal(t, proto.FetchAuthChallengeResponseResponseDefault,
		server.(proto.FetchContinueWithAuth).AuthChallengeResponse.Response, "site logins are not answered with proxy credentials")
}
