package availability

import (
	"context"
	"time"

	"backoffice/internal/model"
	"backoffice/internal/schedule"
)

// CategoryState evaluates a category at m without touching storage.
// An override that has reached its resume time, or that was placed on an
// earlier date than today, no longer counts even before the reconciler clears it.
func CategoryState(c model.Category, m Moment, today time.Time) schedule.State {
	open := schedule.IsCategoryOpen(c.Schedule.Weekly(), m.Day, m.Time)
	override := c.SoldOut.Override()
	if schedule.CheckExpiry(override, m.Time) || (override.ResumeAt != nil && c.SoldOut.SetBefore(today)) {
		override = schedule.SoldOutOverride{}
	}
	return schedule.ResolveOpen(open, c.ManualPause, override)
}

// SpecialState evaluates a special item at m without touching storage.
func SpecialState(sp model.SpecialItem, hours schedule.SpecialHours, m Moment) schedule.State {
	open := sp.Binding().IsOpen(hours, m.Day, m.Time)
	return schedule.ResolveOpen(open, sp.ManualPause, schedule.SoldOutOverride{})
}

// Evaluate computes a category's live state at m.
func (s *Service) Evaluate(ctx context.Context, categoryID int64, m Moment) (schedule.State, error) {
	c, err := s.store.GetCategory(ctx, categoryID)
	if err != nil {
		return schedule.State{}, notFound(err)
	}
	return CategoryState(*c, m, s.today()), nil
}

// EvaluateSpecial computes a special item's live state at m.
func (s *Service) EvaluateSpecial(ctx context.Context, specialID int64, m Moment) (schedule.State, error) {
	sp, err := s.store.GetSpecial(ctx, specialID)
	if err != nil {
		return schedule.State{}, notFound(err)
	}
	hours, err := s.SpecialHours(ctx)
	if err != nil {
		return schedule.State{}, err
	}
	return SpecialState(*sp, hours, m), nil
}

// EvaluateItem classifies a menu item from the live state of its categories at m.
func (s *Service) EvaluateItem(ctx context.Context, itemID int64, m Moment) (schedule.ItemLock, error) {
	item, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		return schedule.ItemLock{}, notFound(err)
	}
	cats, err := s.store.ListCategories(ctx)
	if err != nil {
		return schedule.ItemLock{}, err
	}

	today := s.today()
	states := make(schedule.CategoryStates, len(cats))
	for _, c := range cats {
		states[c.Name] = CategoryState(c, m, today)
	}
	return schedule.Classify(item.Categories, states), nil
}

// CategoryView is a category with its state rebuilt from cached flags.
type CategoryView struct {
	ID    int64          `json:"id"`
	Name  string         `json:"name"`
	State schedule.State `json:"state"`
}

// ItemView is a menu item with its cascade classification.
type ItemView struct {
	ID         int64             `json:"id"`
	Name       string            `json:"name"`
	Categories []string          `json:"categories"`
	Lock       schedule.ItemLock `json:"lock"`
}

// SpecialView is a special item with its state rebuilt from cached flags.
type SpecialView struct {
	ID    int64          `json:"id"`
	Name  string         `json:"name"`
	Days  []int          `json:"days"`
	State schedule.State `json:"state"`
}

// Menu is the list-render snapshot.
type Menu struct {
	Categories []CategoryView `json:"categories"`
	Items      []ItemView     `json:"items"`
	Specials   []SpecialView  `json:"specials"`
}

// Menu classifies every entry from the flags cached by the reconciler.
// No schedule is evaluated here.
func (s *Service) Menu(ctx context.Context) (*Menu, error) {
	cats, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	items, err := s.store.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	specials, err := s.store.ListSpecials(ctx)
	if err != nil {
		return nil, err
	}

	menu := &Menu{
		Categories: make([]CategoryView, 0, len(cats)),
		Items:      make([]ItemView, 0, len(items)),
		Specials:   make([]SpecialView, 0, len(specials)),
	}

	states := make(schedule.CategoryStates, len(cats))
	for _, c := range cats {
		st := schedule.StateFromCache(c.IsPaused, c.IsSoldOut, c.ManualPause)
		states[c.Name] = st
		menu.Categories = append(menu.Categories, CategoryView{ID: c.ID, Name: c.Name, State: st})
	}
	for _, it := range items {
		menu.Items = append(menu.Items, ItemView{
			ID:         it.ID,
			Name:       it.Name,
			Categories: it.Categories,
			Lock:       schedule.Classify(it.Categories, states),
		})
	}
	for _, sp := range specials {
		menu.Specials = append(menu.Specials, SpecialView{
			ID:    sp.ID,
			Name:  sp.Name,
			Days:  sp.Days,
			State: schedule.StateFromCache(sp.IsPaused, false, sp.ManualPause),
		})
	}
	return menu, nil
}
