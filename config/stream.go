package config

import (
	"fmt"
	"sort"

	"github.com/auxoncorp/barectf-parser/schema"
)

func (c *compiler) compileStream(name string, id int, raw interface{}, ctx fieldCtx) (*schema.DataStreamType, error) {
	path := "streams." + name
	m, ok := asMap(raw)
	if !ok {
		return nil, errAt(path, ErrBadFieldSpec, fmt.Errorf("stream must be a map"))
	}

	st := &schema.DataStreamType{
		Name: name,
		ID:   id,
	}
	st.DefaultClock, _ = m["default-clock-name"].(string)

	if err := applyFeatures(path, m, st, ctx); err != nil {
		return nil, err
	}

	if extraRaw, ok := m["packet-context-extra-members"]; ok {
		members, ok := extraRaw.([]interface{})
		if !ok {
			return nil, errAt(path+".packet-context-extra-members", ErrBadFieldSpec, fmt.Errorf("must be an ordered members list"))
		}
		ft, err := parseMembers(path+".packet-context-extra-members", members, ctx)
		if err != nil {
			return nil, err
		}
		st.ContextExtra = ft
	}

	if ctxRaw, ok := m["event-common-context"]; ok {
		members, ok := ctxRaw.([]interface{})
		if !ok {
			return nil, errAt(path+".event-common-context", ErrBadFieldSpec, fmt.Errorf("must be an ordered members list"))
		}
		ft, err := parseMembers(path+".event-common-context", members, ctx)
		if err != nil {
			return nil, err
		}
		st.EventContext = ft
	}

	eventsRaw, ok := asMap(m["event-record-types"])
	if !ok {
		return nil, errAt(path+".event-record-types", ErrBadFieldSpec, fmt.Errorf("missing or malformed event-record-types map"))
	}

	eventNames := make([]string, 0, len(eventsRaw))
	for evName := range eventsRaw {
		eventNames = append(eventNames, evName)
	}
	sort.Strings(eventNames)

	st.Events = make(map[string]*schema.EventRecordType, len(eventNames))
	st.EventsByID = make(map[int]*schema.EventRecordType, len(eventNames))
	for evID, evName := range eventNames {
		evt, err := compileEvent(path+".event-record-types."+evName, evName, evID, eventsRaw[evName], ctx)
		if err != nil {
			return nil, err
		}
		if hasCyclicStructRef(evName, evt.Payload, map[string]bool{}) {
			return nil, errAt(path+".event-record-types."+evName, ErrBadFieldSpec, fmt.Errorf("cyclic struct reference in event payload"))
		}
		if hasCyclicStructRef(evName, evt.SpecificContext, map[string]bool{}) {
			return nil, errAt(path+".event-record-types."+evName, ErrBadFieldSpec, fmt.Errorf("cyclic struct reference in event specific-context"))
		}
		st.Events[evName] = evt
		st.EventsByID[evID] = evt
	}

	return st, nil
}

var streamFeatureKeys = map[string]bool{
	"packet":       true,
	"event-record": true,
}

var packetFeatureKeys = map[string]bool{
	"total-size-field-type":          true,
	"content-size-field-type":        true,
	"beginning-timestamp-field-type": true,
	"end-timestamp-field-type":       true,
	"discarded-event-records-counter-snapshot-field-type": true,
	"sequence-number-field-type":                          true,
}

var eventRecordFeatureKeys = map[string]bool{
	"type-id-field-type":   true,
	"timestamp-field-type": true,
}

// applyFeatures parses a stream's $features map, mirroring
// original_source/src/config.rs's DataStreamTypeFeatures: a "packet" section
// (each entry false or an unsigned integer field-type descriptor, lowering
// directly to the packet-context's fixed fields and their widths) and an
// "event-record" section (type-id-field-type, the event-id field width,
// mandatory since every event record carries one).
func applyFeatures(path string, m map[string]interface{}, st *schema.DataStreamType, ctx fieldCtx) error {
	featuresRaw, ok := asMap(m["$features"])
	if !ok {
		return errAt(path+".$features", ErrMissingFeature, fmt.Errorf("stream requires a $features map"))
	}
	if err := checkKnownKeys(path+".$features", featuresRaw, streamFeatureKeys); err != nil {
		return err
	}

	if packetRaw, ok := asMap(featuresRaw["packet"]); ok {
		packetPath := path + ".$features.packet"
		if err := checkKnownKeys(packetPath, packetRaw, packetFeatureKeys); err != nil {
			return err
		}
		var err error
		if st.TotalSizeWidth, st.HasTotalSize, err = parseOptionalUintFeature(packetPath+".total-size-field-type", packetRaw["total-size-field-type"], ctx); err != nil {
			return err
		}
		if st.ContentSizeWidth, st.HasContentSize, err = parseOptionalUintFeature(packetPath+".content-size-field-type", packetRaw["content-size-field-type"], ctx); err != nil {
			return err
		}
		if st.BeginTSWidth, st.HasBeginTS, err = parseOptionalUintFeature(packetPath+".beginning-timestamp-field-type", packetRaw["beginning-timestamp-field-type"], ctx); err != nil {
			return err
		}
		if st.EndTSWidth, st.HasEndTS, err = parseOptionalUintFeature(packetPath+".end-timestamp-field-type", packetRaw["end-timestamp-field-type"], ctx); err != nil {
			return err
		}
		if st.DiscardedWidth, st.HasDiscarded, err = parseOptionalUintFeature(packetPath+".discarded-event-records-counter-snapshot-field-type", packetRaw["discarded-event-records-counter-snapshot-field-type"], ctx); err != nil {
			return err
		}
		if st.SeqNumWidth, st.HasSeqNum, err = parseOptionalUintFeature(packetPath+".sequence-number-field-type", packetRaw["sequence-number-field-type"], ctx); err != nil {
			return err
		}
	}

	eventRecordRaw, ok := asMap(featuresRaw["event-record"])
	if !ok {
		return errAt(path+".$features.event-record", ErrMissingFeature, fmt.Errorf("stream requires a $features.event-record map"))
	}
	if err := checkKnownKeys(path+".$features.event-record", eventRecordRaw, eventRecordFeatureKeys); err != nil {
		return err
	}
	eventIDWidth, err := parseMandatoryUintFeature(path+".$features.event-record.type-id-field-type", eventRecordRaw["type-id-field-type"], ctx)
	if err != nil {
		return err
	}
	st.EventIDWidth = eventIDWidth

	if st.EventTSWidth, st.HasEventTS, err = parseOptionalUintFeature(path+".$features.event-record.timestamp-field-type", eventRecordRaw["timestamp-field-type"], ctx); err != nil {
		return err
	}

	return nil
}

func compileEvent(path, name string, id int, raw interface{}, ctx fieldCtx) (*schema.EventRecordType, error) {
	m, ok := asMap(raw)
	if !ok {
		return nil, errAt(path, ErrBadFieldSpec, fmt.Errorf("event record type must be a map"))
	}

	evt := &schema.EventRecordType{Name: name, ID: id}

	if lvl, ok := m["log-level"]; ok {
		v, ok := asInt64(lvl)
		if !ok {
			return nil, errAt(path+".log-level", ErrBadFieldSpec, fmt.Errorf("log-level must be an integer"))
		}
		evt.HasLogLevel = true
		evt.LogLevel = v
	}

	if specificRaw, ok := m["specific-context"]; ok {
		members, ok := specificRaw.([]interface{})
		if !ok {
			return nil, errAt(path+".specific-context", ErrBadFieldSpec, fmt.Errorf("specific-context must be an ordered members list"))
		}
		ft, err := parseMembers(path+".specific-context", members, ctx)
		if err != nil {
			return nil, err
		}
		evt.SpecificContext = ft
	}

	if payloadRaw, ok := m["payload"]; ok {
		members, ok := payloadRaw.([]interface{})
		if !ok {
			return nil, errAt(path+".payload", ErrBadFieldSpec, fmt.Errorf("payload must be an ordered members list"))
		}
		ft, err := parseMembers(path+".payload", members, ctx)
		if err != nil {
			return nil, err
		}
		evt.Payload = ft
	}
	return evt, nil
}
