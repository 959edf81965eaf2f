package curation

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/ChrissHeIs/electricco-vehicle-image-manager/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

var ErrRedirectNotAllowed = errors.New("redirect to a host that is not allowed")

// proxyClient is the configured client with every redirect hop checked
// against the allowlist.
func (a *API) proxyClient() *http.Client {
	client := http.DefaultClient
	if a.deps.HTTPClient != nil {
		client = a.deps.HTTPClient
	}
	cl := *client
	allowed := a.deps.Settings.ProxyAllowedHosts
	cl.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 10 {
			return errors.New("stopped after 10 redirects")
		}
		if !utils.IsAllowedHost(req.URL.String(), allowed) {
			return ErrRedirectNotAllowed
		}
		return nil
	}
	return &cl
}

// ProxyHandler forwards GET /proxy?url=<target> to an allowlisted host and
// relays the upstream status, content type and body unchanged.
func (a *API) ProxyHandler() gin.HandlerFunc {
	client := a.proxyClient()
	return func(c *gin.Context) {
		target := c.Query("url")
		if !utils.IsAbsoluteURL(target) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
			return
		}
		if !utils.IsAllowedHost(target, a.deps.Settings.ProxyAllowedHosts) {
			c.JSON(http.StatusForbidden, gin.H{"error": "host not allowed"})
			return
		}

		req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodGet, target, nil)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid url"})
			return
		}
		if accept := c.GetHeader("Accept"); accept != "" {
			req.Header.Set("Accept", accept)
		}
		resp, err := client.Do(req)
		if errors.Is(err, ErrRedirectNotAllowed) {
			c.JSON(http.StatusForbidden, gin.H{"error": ErrRedirectNotAllowed.Error()})
			return
		}
		if err != nil {
			RespondError(c, http.StatusBadGateway, "upstream request failed", err)
			return
		}
		defer resp.Body.Close()

		// The query may carry an API key; log only where the request went.
		fields := logrus.Fields(utils.LogFields(c.Request.Context()))
		if u, err := url.Parse(target); err == nil {
			fields["host"] = u.Host
			fields["path"] = u.Path
		}
		fields["status"] = resp.StatusCode
		a.deps.Logger.WithFields(fields).Debug("[proxy.forward]")

		c.DataFromReader(resp.StatusCode, resp.ContentLength, resp.Header.Get("Content-Type"), resp.Body, nil)
	}
}
