package content

import (
	"context"

	"github.com/conduit-lang/contenttype/internal/storage"
)

// Mode selects how SetContentProperty and SetTypeProperty write
type Mode int

const (
	// Accumulate inserts a row unless an identical (name, value) exists
	Accumulate Mode = iota
	// Single keeps exactly one row per name, overwriting its value
	Single
)

// Property is one EAV row attached to a content item or a content type
type Property struct {
	ID      int64  `json:"ID"`
	OwnerID int64  `json:"ownerID"`
	Name    string `json:"name"`
	Value   string `json:"value"`
}

// PropertyInput describes a property write. TypeID is ignored by
// SetTypeProperty, whose owner is the type itself.
type PropertyInput struct {
	TypeID  int64
	OwnerID int64
	Name    string
	Value   string
	Mode    Mode
}

func propertyCollection(name string) storage.Collection {
	return storage.Collection{
		Name: name,
		Columns: []storage.Column{
			{Name: storage.ColumnID, Type: storage.TypeInteger, PrimaryKey: true},
			{Name: storage.ColumnOwner, Type: storage.TypeInteger, Index: true},
			{Name: storage.ColumnName, Type: storage.TypeText},
			{Name: storage.ColumnValue, Type: storage.TypeText},
		},
	}
}

// SetContentProperty writes a property of a content item
func (s *Service) SetContentProperty(ctx context.Context, in PropertyInput) (*Property, error) {
	if in.Name == "" {
		return nil, invalid("name", "is required")
	}
	ct, err := s.contentTypeFor(ctx, in.TypeID)
	if err != nil {
		return nil, err
	}
	if _, err := s.GetContent(ctx, ct.ID, in.OwnerID); err != nil {
		return nil, err
	}

	p, err := s.setProperty(ctx, ct.PropertiesCollection(), in)
	if err != nil {
		return nil, err
	}
	s.clearGroups(ctx, contentsGroup(ct.ID))
	return p, nil
}

// GetContentProperties returns the properties of a content item; an empty
// name returns every property
func (s *Service) GetContentProperties(ctx context.Context, typeID, ownerID int64, name string) ([]Property, error) {
	ct, err := s.contentTypeFor(ctx, typeID)
	if err != nil {
		return nil, err
	}
	return s.getProperties(ctx, ct.PropertiesCollection(), ownerID, name, nil)
}

// DeleteContentProperty removes the rows named name; with a value only the
// matching rows go. It returns how many rows were removed.
func (s *Service) DeleteContentProperty(ctx context.Context, typeID, ownerID int64, name string, value *string) (int64, error) {
	if name == "" {
		return 0, invalid("name", "is required")
	}
	ct, err := s.contentTypeFor(ctx, typeID)
	if err != nil {
		return 0, err
	}

	n, err := s.store.Delete(ctx, ct.PropertiesCollection(), propertyWhere(ownerID, name, value))
	if err != nil {
		return 0, storageErr(err)
	}
	s.clearGroups(ctx, contentsGroup(ct.ID))
	return n, nil
}

// SetTypeProperty writes a property of a content type
func (s *Service) SetTypeProperty(ctx context.Context, in PropertyInput) (*Property, error) {
	if in.Name == "" {
		return nil, invalid("name", "is required")
	}
	if _, err := s.GetContentType(ctx, in.OwnerID); err != nil {
		return nil, err
	}
	return s.setProperty(ctx, s.typePropsCollection(), in)
}

// GetTypeProperties returns the properties of a content type; an empty
// name returns every property
func (s *Service) GetTypeProperties(ctx context.Context, typeID int64, name string) ([]Property, error) {
	return s.getProperties(ctx, s.typePropsCollection(), typeID, name, nil)
}

// DeleteTypeProperty removes properties of a content type like
// DeleteContentProperty
func (s *Service) DeleteTypeProperty(ctx context.Context, typeID int64, name string, value *string) (int64, error) {
	if name == "" {
		return 0, invalid("name", "is required")
	}
	n, err := s.store.Delete(ctx, s.typePropsCollection(), propertyWhere(typeID, name, value))
	return n, storageErr(err)
}

func (s *Service) setProperty(ctx context.Context, collection string, in PropertyInput) (*Property, error) {
	unlock := s.locks.Lock(collection)
	defer unlock()

	var match *string
	if in.Mode == Accumulate {
		match = &in.Value
	}
	existing, err := s.getProperties(ctx, collection, in.OwnerID, in.Name, match)
	if err != nil {
		return nil, err
	}

	if in.Mode == Accumulate && len(existing) > 0 {
		return &existing[0], nil
	}

	if in.Mode == Single && len(existing) > 0 {
		keep := existing[0]
		if len(existing) > 1 {
			ids := make([]int64, 0, len(existing)-1)
			for _, p := range existing[1:] {
				ids = append(ids, p.ID)
			}
			if _, err := s.store.Delete(ctx, collection, []storage.Condition{storage.In(storage.ColumnID, ids)}); err != nil {
				return nil, storageErr(err)
			}
		}
		if keep.Value != in.Value {
			_, err := s.store.Update(ctx, collection,
				[]storage.Condition{storage.Eq(storage.ColumnID, keep.ID)},
				storage.Record{storage.ColumnValue: in.Value})
			if err != nil {
				return nil, storageErr(err)
			}
			keep.Value = in.Value
		}
		return &keep, nil
	}

	id, err := s.store.IncrementID(ctx, collection)
	if err != nil {
		return nil, storageErr(err)
	}
	p := &Property{ID: id, OwnerID: in.OwnerID, Name: in.Name, Value: in.Value}
	err = s.store.Insert(ctx, collection, storage.Record{
		storage.ColumnID:    p.ID,
		storage.ColumnOwner: p.OwnerID,
		storage.ColumnName:  p.Name,
		storage.ColumnValue: p.Value,
	})
	if err != nil {
		return nil, storageErr(err)
	}
	return p, nil
}

func (s *Service) getProperties(ctx context.Context, collection string, ownerID int64, name string, value *string) ([]Property, error) {
	where := []storage.Condition{storage.Eq(storage.ColumnOwner, ownerID)}
	if name != "" {
		where = propertyWhere(ownerID, name, value)
	}
	records, err := s.store.Get(ctx, collection, storage.Query{Where: where})
	if err != nil {
		return nil, storageErr(err)
	}

	props := make([]Property, 0, len(records))
	for _, rec := range records {
		id, _ := storage.Int64(rec[storage.ColumnID])
		owner, _ := storage.Int64(rec[storage.ColumnOwner])
		props = append(props, Property{
			ID:      id,
			OwnerID: owner,
			Name:    storage.String(rec[storage.ColumnName]),
			Value:   storage.String(rec[storage.ColumnValue]),
		})
	}
	return props, nil
}

func propertyWhere(ownerID int64, name string, value *string) []storage.Condition {
	where := []storage.Condition{
		storage.Eq(storage.ColumnOwner, ownerID),
		storage.Eq(storage.ColumnName, name),
	}
	if value != nil {
		where = append(where, storage.Eq(storage.ColumnValue, *value))
	}
	return where
}
