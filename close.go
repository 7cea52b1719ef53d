package findmymeow

import "errors"

// Close releases the metadata store and, if it holds resources, the id
// allocator. The index and blob store are owned by the caller.
func (s *Service) Close() error {
	if s == nil {
		return nil
	}

	var errs []error
	if err := s.meta.Close(); err != nil {
		errs = append(errs, err)
	}
	if c, ok := s.ids.(interface{ Close() error }); ok && any(s.ids) != any(s.meta) {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
