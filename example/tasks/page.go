package tasks

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"github.com/pthm/tapestry"
	"github.com/pthm/tapestry/lib/ioc"
)

// NewPage builds the task list page: a summary, a form adding tasks and a
// form editing the existing ones.
func NewPage(c *tapestry.Cycle) (*tapestry.Page, error) {
	store, err := ioc.GetService[Store](c.Locator, StoreID)
	if err != nil {
		return nil, err
	}
	return &tapestry.Page{
		Title: "Tasks",
		Body: []tapestry.Component{
			&tapestry.RenderFunc{Id: "stats", Fn: func(c *tapestry.Cycle) error {
				return renderStats(c, store.Stats())
			}},
			addForm(store),
			listForm(store),
		},
	}, nil
}

func renderStats(c *tapestry.Cycle, st Stats) error {
	c.WriteElement("p", templ.Attributes{"id": "stats", "class": "stats"})
	c.WriteText(fmt.Sprintf("%d tasks, %d pending, %d done", st.Total, st.Pending, st.Completed))
	c.Write("</p>")
	return nil
}

func addForm(store Store) *tapestry.Form {
	var title, description, tag string

	titleField := &tapestry.TextField{
		Id:          "title",
		Label:       "Title",
		Placeholder: "What needs doing?",
		Validate:    "notblank,max=80",
		Get:         func() string { return title },
		Set:         func(s string) { title = strings.TrimSpace(s) },
	}
	descField := &tapestry.TextField{
		Id:       "description",
		Label:    "Description",
		Validate: "max=200",
		Get:      func() string { return description },
		Set:      func(s string) { description = strings.TrimSpace(s) },
	}
	tagField := &tapestry.TextField{
		Id:          "tag",
		Label:       "Tag",
		Placeholder: "personal, work, urgent or later",
		Validate:    "omitempty,oneof=personal work urgent later",
		Get:         func() string { return tag },
		Set:         func(s string) { tag = s },
	}

	return &tapestry.Form{
		Id:   "add",
		Zone: "add-zone",
		Body: []tapestry.Component{
			&tapestry.Label{Field: titleField},
			titleField,
			&tapestry.Label{Field: descField},
			descField,
			&tapestry.FormFragment{Id: "more", Body: []tapestry.Component{
				&tapestry.Label{Field: tagField},
				tagField,
			}},
			&tapestry.Submit{Id: "create", Value: "Add task"},
		},
		OnSuccess: func(*tapestry.FormEvent) *tapestry.Result {
			id := store.Add(title, description, Tag(tag))
			title, description, tag = "", "", ""
			return tapestry.RenderPage().
				Flash(tapestry.FlashSuccess, "Task added").
				Trigger("taskAdded", map[string]any{"id": int(id)})
		},
	}
}

// listForm edits every task in one form. Each row carries a title field and
// toggle and delete buttons; the clicked button names its row through its
// Context.
func listForm(store Store) *tapestry.Form {
	renames := make(map[ID]string)
	var op func()

	loop := &tapestry.Loop[ID]{
		Id: "task",
		Source: func() []ID {
			var ids []ID
			for _, t := range store.List() {
				ids = append(ids, t.ID)
			}
			return ids
		},
	}
	rowID := func() string { return strconv.Itoa(int(loop.Value())) }
	selectedRow := func(s *tapestry.Submit) (ID, bool) {
		n, err := strconv.Atoi(s.SelectedContext())
		return ID(n), err == nil
	}

	titleField := &tapestry.TextField{
		Id:       "name",
		Label:    "Title",
		Validate: "notblank,max=80",
		Get: func() string {
			t, _ := store.Get(loop.Value())
			return t.Title
		},
		Set: func(s string) { renames[loop.Value()] = strings.TrimSpace(s) },
	}
	toggle := &tapestry.Submit{Id: "toggle", Value: "Toggle", Context: rowID}
	toggle.OnSelected = func(*tapestry.Cycle) {
		if id, ok := selectedRow(toggle); ok {
			op = func() { store.Toggle(id) }
		}
	}
	remove := &tapestry.Submit{Id: "delete", Value: "Delete", Context: rowID}
	remove.OnSelected = func(*tapestry.Cycle) {
		if id, ok := selectedRow(remove); ok {
			op = func() { store.Delete(id) }
		}
	}

	loop.Body = []tapestry.Component{
		&tapestry.RenderFunc{Fn: func(c *tapestry.Cycle) error {
			t, _ := store.Get(loop.Value())
			c.WriteElement("li", templ.Attributes{
				"id":          "task-" + rowID(),
				"class":       "task " + t.Status.String(),
				"data-tag":    string(t.Tag),
				"data-status": t.Status.String(),
			})
			return nil
		}},
		titleField,
		toggle,
		remove,
		tapestry.Static(templ.Raw("</li>")),
	}

	return &tapestry.Form{
		Id:   "list",
		Zone: "list-zone",
		Body: []tapestry.Component{
			tapestry.Static(templ.Raw(`<ul class="tasks">`)),
			loop,
			tapestry.Static(templ.Raw("</ul>")),
			&tapestry.Submit{Id: "save", Value: "Save changes"},
			&tapestry.Submit{Id: "discard", Value: "Discard", Mode: tapestry.SubmitCancel},
		},
		OnCanceled: func(ev *tapestry.FormEvent) *tapestry.Result {
			return tapestry.Redirect(ev.Cycle.PageURL())
		},
		OnSuccess: func(ev *tapestry.FormEvent) *tapestry.Result {
			for id, title := range renames {
				store.Rename(id, title)
			}
			if op != nil {
				op()
			}
			if !ev.Cycle.IsAjax() {
				return nil
			}
			return tapestry.RenderPage().Trigger("tasksChanged")
		},
	}
}
