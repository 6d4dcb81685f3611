package api

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/ksred/linkdesk/internal/models"
	"github.com/ksred/linkdesk/internal/search"
)

// SearchLinkResponse wraps link suggestions
type SearchLinkResponse struct {
	Results []search.Result `json:"results"`
	Count   int             `json:"count"`
}

// SearchWidgetResponse wraps raw widget rows
type SearchWidgetResponse struct {
	Values [][]string `json:"values"`
	Count  int        `json:"count"`
}

// valuesToArgs keeps single values as strings and repeated keys as lists
func valuesToArgs(values url.Values, into map[string]interface{}) {
	for key, vals := range values {
		switch len(vals) {
		case 0:
		case 1:
			into[key] = vals[0]
		default:
			list := make([]interface{}, len(vals))
			for i, v := range vals {
				list[i] = v
			}
			into[key] = list
		}
	}
}

// searchLinkHandler godoc
// @Summary Search link targets
// @Description Ranked suggestions for a link field. Extra query parameters are ignored.
// @Tags search
// @Produce json
// @Security ApiKeyAuth
// @Param doctype query string true "Doctype to search"
// @Param txt query string false "Search text"
// @Param searchfield query string false "Restrict matching to one field"
// @Param start query int false "Offset" default(0)
// @Param page_len query int false "Page length" default(20)
// @Param filters query string false "JSON filters"
// @Param _lang query string false "Language override"
// @Success 200 {object} SearchLinkResponse
// @Failure 400 {object} ErrorResponse
// @Router /search/link [get]
func (s *Server) searchLinkHandler(c *gin.Context) {
	args := search.Args{}
	valuesToArgs(c.Request.URL.Query(), args)

	results, err := s.searchService.SearchLink(c.Request.Context(), search.LinkRequest{
		Args: args,
		Lang: c.GetString(langKey),
	})
	if err != nil {
		s.respondError(c, err, "Failed to search")
		return
	}

	s.logActivity(c, models.ActivityLinkSearch, map[string]interface{}{
		"doctype": args.String("doctype"),
		"txt":     args.String("txt"),
		"results": len(results),
	})

	if results == nil {
		results = []search.Result{}
	}
	c.JSON(http.StatusOK, SearchLinkResponse{Results: results, Count: len(results)})
}

// searchWidgetHandler godoc
// @Summary Search link targets, raw rows
// @Tags search
// @Produce json
// @Security ApiKeyAuth
// @Param doctype query string true "Doctype to search"
// @Param txt query string false "Search text"
// @Success 200 {object} SearchWidgetResponse
// @Failure 400 {object} ErrorResponse
// @Router /search/widget [get]
func (s *Server) searchWidgetHandler(c *gin.Context) {
	args := search.Args{}
	valuesToArgs(c.Request.URL.Query(), args)

	values, err := s.searchService.SearchWidget(c.Request.Context(), search.WidgetRequest{
		Args: args,
		Lang: c.GetString(langKey),
	})
	if err != nil {
		s.respondError(c, err, "Failed to search")
		return
	}

	if values == nil {
		values = [][]string{}
	}
	c.JSON(http.StatusOK, SearchWidgetResponse{Values: values, Count: len(values)})
}
