// Package router indexes workflow triggers by event kind and resolves
// which workflows an incoming event starts.
package router

import (
	"path"
	"regexp"
	"strings"
	"sync"

	"docflow/logger"
	"docflow/model"

	"go.uber.org/zap"
)

// Match names one workflow trigger that accepted the event.
type Match struct {
	WorkflowId   string `json:"workflowId"`
	WorkflowName string `json:"workflowName"`
	TriggerId    string `json:"triggerId"`
}

type entry struct {
	workflowId   string
	workflowName string
	trigger      model.Trigger
	subjectRe    *regexp.Regexp
}

type Router struct {
	mu    sync.RWMutex
	index map[model.EventKind][]entry
}

func NewRouter() *Router {
	return &Router{index: make(map[model.EventKind][]entry)}
}

// Reload rebuilds the index from the given workflow definitions.
// Disabled workflows are left out entirely. Called on every definition
// change; routing reads run against the swapped-in index.
func (r *Router) Reload(workflows []model.Workflow) {
	index := make(map[model.EventKind][]entry)
	for _, wf := range workflows {
		if !wf.Enabled {
			continue
		}
		for _, trigger := range wf.Triggers {
			e := entry{workflowId: wf.Id, workflowName: wf.Name, trigger: trigger}
			if len(trigger.SubjectRegex) > 0 {
				re, err := regexp.Compile(trigger.SubjectRegex)
				if err != nil {
					logger.Error("skipping trigger with invalid subject regex",
						zap.String("workflowId", wf.Id), zap.String("triggerId", trigger.Id), zap.Error(err))
					continue
				}
				e.subjectRe = re
			}
			index[trigger.Kind] = append(index[trigger.Kind], e)
		}
	}
	r.mu.Lock()
	r.index = index
	r.mu.Unlock()
}

// Route returns every workflow trigger matching the event. An empty
// result is not an error; the caller audits unmatched events.
func (r *Router) Route(ev model.Event) []Match {
	r.mu.RLock()
	entries := r.index[ev.Kind]
	r.mu.RUnlock()

	var matches []Match
	for _, e := range entries {
		if e.matches(ev) {
			matches = append(matches, Match{WorkflowId: e.workflowId, WorkflowName: e.workflowName, TriggerId: e.trigger.Id})
		}
	}
	return matches
}

func (e entry) matches(ev model.Event) bool {
	switch ev.Kind {
	case model.EVENT_FILE_ADDED:
		return e.matchesFile(ev.File)
	case model.EVENT_TEMPLATE_MATCHED:
		return e.matchesTemplate(ev.Template)
	case model.EVENT_SCHEDULE_FIRED:
		return e.matchesSchedule(ev.Schedule)
	case model.EVENT_WEBHOOK_RECEIVED:
		return e.matchesWebhook(ev.Webhook)
	case model.EVENT_EMAIL_RECEIVED:
		return e.matchesEmail(ev.Email)
	}
	return false
}

func (e entry) matchesFile(p *model.FileAddedPayload) bool {
	if p == nil {
		return false
	}
	if len(e.trigger.Extensions) > 0 && !matchesExtension(e.trigger.Extensions, p.Path) {
		return false
	}
	if len(e.trigger.Patterns) == 0 {
		return true
	}
	for _, pattern := range e.trigger.Patterns {
		if matchesGlob(pattern, p.Path) {
			return true
		}
	}
	return false
}

// matchesGlob matches the full path first; a bare pattern with no
// separator also matches against the file's base name, so "*.pdf"
// catches files in any directory.
func matchesGlob(pattern, filePath string) bool {
	if ok, err := path.Match(pattern, filePath); err == nil && ok {
		return true
	}
	if !strings.Contains(pattern, "/") {
		if ok, err := path.Match(pattern, path.Base(filePath)); err == nil && ok {
			return true
		}
	}
	return false
}

func matchesExtension(extensions []string, filePath string) bool {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(filePath)), ".")
	for _, allowed := range extensions {
		if strings.TrimPrefix(strings.ToLower(allowed), ".") == ext {
			return true
		}
	}
	return false
}

func (e entry) matchesTemplate(p *model.TemplateMatchedPayload) bool {
	if p == nil {
		return false
	}
	if len(e.trigger.TemplateName) > 0 && e.trigger.TemplateName != p.TemplateName {
		return false
	}
	return p.Confidence >= e.trigger.MinConfidence
}

func (e entry) matchesSchedule(p *model.ScheduleFiredPayload) bool {
	if p == nil {
		return false
	}
	// a trigger declaring its own schedule is bound to the job the
	// coordinator registered for it under workflowId:triggerId
	if e.trigger.Schedule != nil {
		return p.JobId == e.workflowId+":"+e.trigger.Id
	}
	if len(e.trigger.JobId) > 0 {
		return p.JobId == e.trigger.JobId
	}
	return p.WorkflowId == e.workflowId
}

func (e entry) matchesWebhook(p *model.WebhookPayload) bool {
	if p == nil {
		return false
	}
	return len(e.trigger.WebhookPath) == 0 || e.trigger.WebhookPath == p.Path
}

func (e entry) matchesEmail(p *model.EmailPayload) bool {
	if p == nil {
		return false
	}
	if len(e.trigger.Senders) > 0 {
		found := false
		for _, sender := range e.trigger.Senders {
			if strings.Contains(strings.ToLower(p.From), strings.ToLower(sender)) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(e.trigger.SubjectContains) > 0 {
		found := false
		for _, needle := range e.trigger.SubjectContains {
			if strings.Contains(strings.ToLower(p.Subject), strings.ToLower(needle)) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if e.subjectRe != nil && !e.subjectRe.MatchString(p.Subject) {
		return false
	}
	return true
}
