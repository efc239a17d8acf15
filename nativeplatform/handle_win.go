//go:build windows

package nativeplatform

import (
	"context"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
)

const (
	cchRmSessionKey = 32 // CCH_RM_SESSION_KEY
	cchRmMaxAppName = 255
	cchRmMaxSvcName = 63
	gwOwner         = 4 // GW_OWNER
)

var (
	modRstrtmgr = windows.NewLazySystemDLL("rstrtmgr.dll")
	modUser32   = windows.NewLazySystemDLL("user32.dll")

	procRmStartSession        = modRstrtmgr.NewProc("RmStartSession")
	procRmRegisterResources   = modRstrtmgr.NewProc("RmRegisterResources")
	procRmGetList             = modRstrtmgr.NewProc("RmGetList")
	procRmEndSession          = modRstrtmgr.NewProc("RmEndSession")
	procEnumWindows           = modUser32.NewProc("EnumWindows")
	procGetWindowThreadProcID = modUser32.NewProc("GetWindowThreadProcessId")
	procGetWindow             = modUser32.NewProc("GetWindow")
	procIsWindowVisible       = modUser32.NewProc("IsWindowVisible")
	procGetWindowTextLengthW  = modUser32.NewProc("GetWindowTextLengthW")
	procGetWindowTextW        = modUser32.NewProc("GetWindowTextW")

	requiredProcs = []*windows.LazyProc{
		procRmStartSession, procRmRegisterResources, procRmGetList, procRmEndSession,
		procEnumWindows, procGetWindowThreadProcID, procGetWindow,
		procIsWindowVisible, procGetWindowTextLengthW, procGetWindowTextW,
	}
)

// rmUniqueProcess mirrors RM_UNIQUE_PROCESS.
type rmUniqueProcess struct {
	ProcessID        uint32
	ProcessStartTime windows.Filetime
}

// rmProcessInfo mirrors RM_PROCESS_INFO.
type rmProcessInfo struct {
	Process          rmUniqueProcess
	AppName          [cchRmMaxAppName + 1]uint16
	ServiceShortName [cchRmMaxSvcName + 1]uint16
	ApplicationType  int32
	AppStatus        uint32
	TSSessionID      uint32
	Restartable      int32
}

func nativeLoaders() map[string]Loader {
	return map[string]Loader{
		"windows-amd64": loadWindowsBackend,
		"windows-386":   loadWindowsBackend,
		"windows-arm64": loadWindowsBackend,
	}
}

// windowsBackend uses the Restart Manager for file handles and EnumWindows
// for window titles.
type windowsBackend struct{}

func loadWindowsBackend(_ Config) (Backend, error) {
	for _, p := range requiredProcs {
		if err := p.Find(); err != nil {
			return nil, errors.Wrapf(err, "failed to resolve %s", p.Name)
		}
	}
	enumCallbackOnce.Do(func() {
		enumCalls = make(map[uintptr]*enumWindowsData)
		enumCallback = windows.NewCallback(enumWindowsProc)
	})
	return windowsBackend{}, nil
}

// https://devblogs.microsoft.com/oldnewthing/20120217-00/?p=8283
func (windowsBackend) PidsHoldingFile(ctx context.Context, path string) ([]ProcessID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if path == "" {
		return nil, errors.New("empty path")
	}
	pathPtr, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil, errors.Wrap(err, "invalid path")
	}

	session, err := rmStartSession()
	if err != nil {
		return nil, err
	}
	defer procRmEndSession.Call(uintptr(session))

	if r, _, _ := procRmRegisterResources.Call(
		uintptr(session),
		1, uintptr(unsafe.Pointer(&pathPtr)),
		0, 0,
		0, 0,
	); r != 0 {
		return nil, errors.Wrap(windows.Errno(r), "RmRegisterResources failed")
	}

	infos, err := rmGetList(session)
	if err != nil {
		return nil, err
	}

	pids := make([]ProcessID, 0, len(infos))
	for _, info := range infos {
		if sameProcessInstance(info.Process) {
			pids = append(pids, ProcessID(info.Process.ProcessID))
		}
	}
	return pids, nil
}

func rmStartSession() (uint32, error) {
	var session uint32
	var key [cchRmSessionKey + 1]uint16

	r, _, _ := procRmStartSession.Call(
		uintptr(unsafe.Pointer(&session)),
		0,
		uintptr(unsafe.Pointer(&key[0])),
	)
	if r != 0 {
		return 0, errors.Wrap(windows.Errno(r), "RmStartSession failed")
	}
	return session, nil
}

func rmGetList(session uint32) ([]rmProcessInfo, error) {
	var (
		needed uint32 = 64
		count  uint32
		reason uint32
		infos  []rmProcessInfo
		r      uintptr
	)

	for {
		count = 2 * needed
		if count == 0 {
			count = 1
		}
		needed = 0
		infos = make([]rmProcessInfo, count)

		r, _, _ = procRmGetList.Call(
			uintptr(session),
			uintptr(unsafe.Pointer(&needed)),
			uintptr(unsafe.Pointer(&count)),
			uintptr(unsafe.Pointer(&infos[0])),
			uintptr(unsafe.Pointer(&reason)),
		)
		if windows.Errno(r) != windows.ERROR_MORE_DATA {
			break
		}
	}

	if r != 0 {
		return nil, errors.Wrap(windows.Errno(r), "RmGetList failed")
	}
	return infos[:count], nil
}

// sameProcessInstance checks the pid is still the process the Restart
// Manager saw, not a new one reusing the id.
func sameProcessInstance(p rmUniqueProcess) bool {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, p.ProcessID)
	if err != nil {
		return false
	}
	defer windows.CloseHandle(h)

	var created, exited, kernel, user windows.Filetime
	if err := windows.GetProcessTimes(h, &created, &exited, &kernel, &user); err != nil {
		return false
	}
	return created == p.ProcessStartTime
}

type enumWindowsData struct {
	ctx    context.Context
	pid    uint32
	titles []string
}

var (
	enumCallbackOnce sync.Once
	enumCallback     uintptr

	// EnumWindows only passes an LPARAM through, so callers are looked up by id.
	enumMu     sync.Mutex
	enumNextID atomic.Uintptr
	enumCalls  map[uintptr]*enumWindowsData
)

func enumWindowsProc(hwnd, lparam uintptr) uintptr {
	enumMu.Lock()
	data := enumCalls[lparam]
	enumMu.Unlock()

	if data == nil {
		return 0
	}
	if data.ctx.Err() != nil {
		return 0 // stop enumerating
	}

	if !isWindowOfPid(hwnd, data.pid) || !isMainWindow(hwnd) {
		return 1
	}
	if title, ok := windowTitle(hwnd); ok {
		data.titles = append(data.titles, title)
	}
	return 1
}

func isWindowOfPid(hwnd uintptr, pid uint32) bool {
	var windowPid uint32
	procGetWindowThreadProcID.Call(hwnd, uintptr(unsafe.Pointer(&windowPid)))
	return windowPid == pid
}

func isMainWindow(hwnd uintptr) bool {
	owner, _, _ := procGetWindow.Call(hwnd, gwOwner)
	if owner != 0 {
		return false
	}
	visible, _, _ := procIsWindowVisible.Call(hwnd)
	return visible != 0
}

func windowTitle(hwnd uintptr) (string, bool) {
	length, _, _ := procGetWindowTextLengthW.Call(hwnd)
	if length == 0 {
		return "", false
	}

	buf := make([]uint16, length+1)
	n, _, _ := procGetWindowTextW.Call(hwnd, uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	return windows.UTF16ToString(buf[:n]), true
}

func (windowsBackend) WindowTitles(ctx context.Context, pid ProcessID) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data := &enumWindowsData{ctx: ctx, pid: uint32(pid)}
	id := enumNextID.Add(1)

	enumMu.Lock()
	enumCalls[id] = data
	enumMu.Unlock()
	defer func() {
		enumMu.Lock()
		delete(enumCalls, id)
		enumMu.Unlock()
	}()

	r, _, callErr := procEnumWindows.Call(enumCallback, id)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r == 0 {
		return nil, errors.Wrap(callErr, "EnumWindows failed")
	}
	return data.titles, nil
}
