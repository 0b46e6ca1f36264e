package capability

import (
	"errors"

	"github.com/GriffinCanCode/Shelf/backend/internal/events"
	"github.com/GriffinCanCode/Shelf/backend/internal/providers/storage"
	"github.com/GriffinCanCode/Shelf/backend/internal/sandbox"
	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// LoggedInKey is the settings key setLoginStatus writes
const LoggedInKey = "loggedIn"

// installStorage exposes the namespaced settings, storage and keychain
// accessors plus setLoginStatus. The optional trailing id argument must
// name the owning package.
func (s *scope) installStorage() error {
	funcs := map[string]func(goja.FunctionCall) goja.Value{
		"getSettingsValue": s.getter("getSettingsValue", s.deps.Preferences, storage.NamespaceSettings),
		"getStorageValue":  s.getter("getStorageValue", s.deps.Preferences, storage.NamespaceStorage),
		"setStorageValue":  s.setter("setStorageValue", s.deps.Preferences, storage.NamespaceStorage),
		"getKeychainValue": s.getter("getKeychainValue", s.deps.Keychain, storage.NamespaceKeychain),
		"setKeychainValue": s.setter("setKeychainValue", s.deps.Keychain, storage.NamespaceKeychain),
		"setLoginStatus":   s.setLoginStatus,
	}
	for name, fn := range funcs {
		if err := s.vm.Set(name, fn); err != nil {
			return err
		}
	}
	return nil
}

func (s *scope) getter(name string, store storage.Store, namespace string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		key := call.Argument(0).String()
		if !s.allowed(name, call, 1) || key == "" {
			return goja.Null()
		}

		ctx, cancel := s.storeContext()
		defer cancel()
		data, err := store.Get(ctx, storage.Key(namespace, s.category, s.id, key))
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				s.logger.Warn("Store read failed", zap.String("function", name), zap.String("key", key), zap.Error(err))
			}
			return goja.Null()
		}

		v, err := s.parse(goja.Undefined(), s.vm.ToValue(string(data)))
		if err != nil {
			s.logger.Warn("Stored value is not JSON", zap.String("key", key), zap.Error(err))
			return goja.Null()
		}
		return v
	}
}

func (s *scope) setter(name string, store storage.Store, namespace string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		key := call.Argument(0).String()
		if !s.allowed(name, call, 2) || key == "" {
			return goja.Undefined()
		}

		ctx, cancel := s.storeContext()
		defer cancel()
		fullKey := storage.Key(namespace, s.category, s.id, key)

		value := call.Argument(1)
		var err error
		if goja.IsUndefined(value) || goja.IsNull(value) {
			err = store.Delete(ctx, fullKey)
		} else {
			var data []byte
			if data, err = sandbox.Encode(value); err == nil {
				err = store.Set(ctx, fullKey, data)
			}
		}
		if err != nil {
			s.logger.Warn("Store write failed", zap.String("function", name), zap.String("key", key), zap.Error(err))
		}
		return goja.Undefined()
	}
}

// setLoginStatus persists the tracker login flag and announces it
func (s *scope) setLoginStatus(call goja.FunctionCall) goja.Value {
	if !s.allowed("setLoginStatus", call, 1) {
		return goja.Undefined()
	}
	status := call.Argument(0).ToBoolean()

	ctx, cancel := s.storeContext()
	defer cancel()
	data := []byte("false")
	if status {
		data = []byte("true")
	}
	key := storage.Key(storage.NamespaceSettings, storage.CategoryTrackers, s.id, LoggedInKey)
	if err := s.deps.Preferences.Set(ctx, key, data); err != nil {
		s.logger.Warn("Failed to persist login status", zap.Error(err))
	}

	s.deps.Bus.Publish(events.LoginStatusTopic(s.id), status)
	return goja.Undefined()
}
