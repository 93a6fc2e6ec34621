// CLAUDE:SUMMARY Request interception that fails blocked resource types on a rod page.
package render

import (
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// blockResources starts a hijack router on page that fails requests whose
// resource type is in types. The caller stops the router.
func blockResources(page *rod.Page, types []string) *rod.HijackRouter {
	blocked := blockSet(types)
	router := page.HijackRequests()
	router.MustAdd("*", func(h *rod.Hijack) {
		if shouldBlock(blocked, string(h.Request.Type())) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()
	return router
}

func blockSet(types []string) map[string]bool {
	m := make(map[string]bool, len(types))
	for _, t := range types {
		m[strings.ToLower(strings.TrimSpace(t))] = true
	}
	return m
}

// shouldBlock maps CDP resource types to the plural names used in config.
func shouldBlock(blocked map[string]bool, resType string) bool {
	lower := strings.ToLower(resType)
	switch lower {
	case "image":
		return blocked["images"] || blocked[lower]
	case "font":
		return blocked["fonts"] || blocked[lower]
	case "media":
		return blocked["media"]
	case "stylesheet":
		return blocked["stylesheets"] || blocked[lower]
	}
	return blocked[lower]
}
