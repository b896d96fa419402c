package hal

import "fmt"

// Status is an engine result code. Zero means success; negative values come
// from a fixed registry.
type Status int32

// Engine status codes.
const (
	StatusOK                   Status = 0
	StatusCallbackFailed       Status = -1
	StatusNotMounted           Status = -10000
	StatusFull                 Status = -10001
	StatusNotFound             Status = -10002
	StatusEndOfObject          Status = -10003
	StatusDeleted              Status = -10004
	StatusNotFinalized         Status = -10005
	StatusNotIndex             Status = -10006
	StatusOutOfFileDescriptors Status = -10007
	StatusFileClosed           Status = -10008
	StatusFileDeleted          Status = -10009
	StatusBadDescriptor        Status = -10010
	StatusIsIndex              Status = -10011
	StatusIsFree               Status = -10012
	StatusIndexSpanMismatch    Status = -10013
	StatusDataSpanMismatch     Status = -10014
	StatusIndexRefFree         Status = -10015
	StatusIndexRefLU           Status = -10016
	StatusIndexRefInvalid      Status = -10017
	StatusIndexFree            Status = -10018
	StatusIndexLU              Status = -10019
	StatusIndexInvalid         Status = -10020
	StatusNotWritable          Status = -10021
	StatusNotReadable          Status = -10022
	StatusConflictingName      Status = -10023
	StatusNotConfigured        Status = -10024
	StatusNotAFilesystem       Status = -10025
	StatusMounted              Status = -10026
	StatusEraseFailed          Status = -10027
	StatusMagicNotPossible     Status = -10028
	StatusNoDeletedBlocks      Status = -10029
	StatusFileExists           Status = -10030
	StatusNotAFile             Status = -10031
	StatusReadOnlyNotImpl      Status = -10032
	StatusReadOnlyAborted      Status = -10033
	StatusProbeTooFewBlocks    Status = -10034
	StatusProbeNotAFilesystem  Status = -10035
	StatusNameTooLong          Status = -10036
	StatusIndexMapUnmapped     Status = -10037
	StatusIndexMapMapped       Status = -10038
	StatusIndexMapBadRange     Status = -10039
	StatusSeekBounds           Status = -10040
	StatusInternal             Status = -10050
	StatusTest                 Status = -10100
)

type statusInfo struct {
	symbol string
	text   string
}

var registry = map[Status]statusInfo{
	StatusOK:                   {"OK", "ok"},
	StatusCallbackFailed:       {"ERR_CALLBACK", "device callback failed"},
	StatusNotMounted:           {"ERR_NOT_MOUNTED", "not mounted"},
	StatusFull:                 {"ERR_FULL", "full"},
	StatusNotFound:             {"ERR_NOT_FOUND", "not found"},
	StatusEndOfObject:          {"ERR_END_OF_OBJECT", "end of object"},
	StatusDeleted:              {"ERR_DELETED", "deleted"},
	StatusNotFinalized:         {"ERR_NOT_FINALIZED", "not finalized"},
	StatusNotIndex:             {"ERR_NOT_INDEX", "not index"},
	StatusOutOfFileDescriptors: {"ERR_OUT_OF_FILE_DESCS", "out of file descriptors"},
	StatusFileClosed:           {"ERR_FILE_CLOSED", "file closed"},
	StatusFileDeleted:          {"ERR_FILE_DELETED", "file deleted"},
	StatusBadDescriptor:        {"ERR_BAD_DESCRIPTOR", "bad descriptor"},
	StatusIsIndex:              {"ERR_IS_INDEX", "is index"},
	StatusIsFree:               {"ERR_IS_FREE", "is free"},
	StatusIndexSpanMismatch:    {"ERR_INDEX_SPAN_MISMATCH", "index span mismatch"},
	StatusDataSpanMismatch:     {"ERR_DATA_SPAN_MISMATCH", "data span mismatch"},
	StatusIndexRefFree:         {"ERR_INDEX_REF_FREE", "index ref free"},
	StatusIndexRefLU:           {"ERR_INDEX_REF_LU", "index ref lu"},
	StatusIndexRefInvalid:      {"ERR_INDEX_REF_INVALID", "index ref invalid"},
	StatusIndexFree:            {"ERR_INDEX_FREE", "index free"},
	StatusIndexLU:              {"ERR_INDEX_LU", "index lu"},
	StatusIndexInvalid:         {"ERR_INDEX_INVALID", "index invalid"},
	StatusNotWritable:          {"ERR_NOT_WRITABLE", "not writable"},
	StatusNotReadable:          {"ERR_NOT_READABLE", "not readable"},
	StatusConflictingName:      {"ERR_CONFLICTING_NAME", "conflicting name"},
	StatusNotConfigured:        {"ERR_NOT_CONFIGURED", "not configured"},
	StatusNotAFilesystem:       {"ERR_NOT_A_FS", "not a filesystem"},
	StatusMounted:              {"ERR_MOUNTED", "mounted"},
	StatusEraseFailed:          {"ERR_ERASE_FAIL", "erase failed"},
	StatusMagicNotPossible:     {"ERR_MAGIC_NOT_POSSIBLE", "magic not possible"},
	StatusNoDeletedBlocks:      {"ERR_NO_DELETED_BLOCKS", "no deleted blocks"},
	StatusFileExists:           {"ERR_FILE_EXISTS", "file exists"},
	StatusNotAFile:             {"ERR_NOT_A_FILE", "not a file"},
	StatusReadOnlyNotImpl:      {"ERR_RO_NOT_IMPL", "read-only not implemented"},
	StatusReadOnlyAborted:      {"ERR_RO_ABORTED_OPERATION", "read-only aborted operation"},
	StatusProbeTooFewBlocks:    {"ERR_PROBE_TOO_FEW_BLOCKS", "probe too few blocks"},
	StatusProbeNotAFilesystem:  {"ERR_PROBE_NOT_A_FS", "probe not a filesystem"},
	StatusNameTooLong:          {"ERR_NAME_TOO_LONG", "name too long"},
	StatusIndexMapUnmapped:     {"ERR_IX_MAP_UNMAPPED", "index map unmapped"},
	StatusIndexMapMapped:       {"ERR_IX_MAP_MAPPED", "index map mapped"},
	StatusIndexMapBadRange:     {"ERR_IX_MAP_BAD_RANGE", "index map bad range"},
	StatusSeekBounds:           {"ERR_SEEK_BOUNDS", "seek out of bounds"},
	StatusInternal:             {"ERR_INTERNAL", "internal"},
	StatusTest:                 {"ERR_TEST", "test"},
}

// Known reports whether s is part of the registry.
func (s Status) Known() bool {
	_, ok := registry[s]
	return ok
}

// Symbol returns the registry name of s, or ERR_UNKNOWN.
func (s Status) Symbol() string {
	if info, ok := registry[s]; ok {
		return info.symbol
	}
	return "ERR_UNKNOWN"
}

func (s Status) String() string {
	if info, ok := registry[s]; ok {
		return info.text
	}
	return fmt.Sprintf("unknown engine error %d", int32(s))
}

// StatusFromInt32 converts a raw engine return value. Non-negative values
// collapse to StatusOK.
func StatusFromInt32(v int32) Status {
	if v >= 0 {
		return StatusOK
	}
	return Status(v)
}
