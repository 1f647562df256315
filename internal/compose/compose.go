// Package compose turns a stored notification into the {title, body} pair
// carried by a push message. Composition never fails: every branch falls
// back to a fixed default.
package compose

import (
	"strings"

	"github.com/gitping/relay/internal/db"
)

// Content is the composed push payload consumed by the dispatcher.
type Content struct {
	Title string
	Body  string
}

// Header names set by GitLab on its notification emails.
const (
	headerProject        = "x-gitlab-project"
	headerPipelineID     = "x-gitlab-pipeline-id"
	headerPipelineStatus = "x-gitlab-pipeline-status"
)

// pipelineTitles is keyed by the x-gitlab-pipeline-status header value.
// Unknown or missing statuses get the generic pipeline title.
var pipelineTitles = map[string]string{
	"success": "Pipeline Succeded!",
	"failed":  "Pipeline Failed!",
}

const (
	genericPipelineTitle = "Pipeline"
	defaultBody          = "You have a new notification!"

	welcomeTitle = "Welcome to Ping for Gitlab!"
	welcomeBody  = "You succesfully connected to Gitlab! come back to the app to complete the onboarding process"
)

// ForNotification classifies the notification by its headers and composes
// the matching content. Decision order: pipeline, then generic (no project
// header), then the project default.
func ForNotification(n *db.Notification) Content {
	if n.Headers.Has(headerPipelineID) {
		return composePipeline(n)
	}
	if !n.Headers.Has(headerProject) {
		return composeGeneric(n)
	}
	return composeDefault(n)
}

// Welcome is the fixed first-notification override: the user's very first
// push anchors to onboarding instead of raw content.
func Welcome() Content {
	return Content{
		Title: welcomeTitle,
		Body:  welcomeBody,
	}
}

func composePipeline(n *db.Notification) Content {
	title, ok := pipelineTitles[n.Headers.Get(headerPipelineStatus)]
	if !ok {
		title = genericPipelineTitle
	}

	return Content{
		Title: title,
		Body:  stripProjectPrefix(n.Subject, n.Headers.Get(headerProject)),
	}
}

func composeGeneric(n *db.Notification) Content {
	return Content{
		Title: stripReplyPrefix(n.Subject, n.Headers.Get(headerProject)),
	}
}

func composeDefault(n *db.Notification) Content {
	body := defaultBody
	if line, _, _ := strings.Cut(n.Text, "\n"); strings.TrimSpace(line) != "" {
		body = strings.TrimSpace(line)
	}

	return Content{
		Title: stripReplyPrefix(n.Subject, n.Headers.Get(headerProject)),
		Body:  body,
	}
}

// stripReplyPrefix removes the "Re: <project> | " prefix the mail provider
// puts on reply subjects. With no project there is nothing to strip.
func stripReplyPrefix(subject, project string) string {
	if project != "" {
		subject = strings.Replace(subject, "Re: "+project+" | ", "", 1)
	}
	return strings.TrimLeft(subject, " \t")
}

// stripProjectPrefix removes the bare "<project> | " prefix.
func stripProjectPrefix(subject, project string) string {
	if project != "" {
		subject = strings.Replace(subject, project+" | ", "", 1)
	}
	return strings.TrimLeft(subject, " \t")
}
