package classifier

import (
	"reflect"
	"testing"
)

func TestClassify_KeyError(t *testing.T) {
	sig := Classify("KeyError: 'age'")
	if !reflect.DeepEqual(sig.Labels, []string{"KeyError"}) {
		t.Errorf("labels = %v, want [KeyError]", sig.Labels)
	}
	if !reflect.DeepEqual(sig.Entities, []string{"age"}) {
		t.Errorf("entities = %v, want [age]", sig.Entities)
	}
}

func TestClassify_NameError(t *testing.T) {
	sig := Classify("NameError: name 'df' is not defined")
	if !reflect.DeepEqual(sig.Labels, []string{"NameError"}) {
		t.Errorf("labels = %v, want [NameError]", sig.Labels)
	}
	if !reflect.DeepEqual(sig.Entities, []string{"df"}) {
		t.Errorf("entities = %v, want [df]", sig.Entities)
	}
}

func TestClassify_AttributeError_TwoEntities(t *testing.T) {
	sig := Classify("AttributeError: 'DataFrame' object has no attribute 'groupbyy'")
	if !reflect.DeepEqual(sig.Labels, []string{"AttributeError"}) {
		t.Errorf("labels = %v, want [AttributeError]", sig.Labels)
	}
	if !reflect.DeepEqual(sig.Entities, []string{"DataFrame", "groupbyy"}) {
		t.Errorf("entities = %v, want [DataFrame groupbyy]", sig.Entities)
	}
}

func TestClassify_NoCaptureGroups(t *testing.T) {
	sig := Classify("IndexError: list index out of range")
	if !reflect.DeepEqual(sig.Labels, []string{"IndexError"}) {
		t.Errorf("labels = %v, want [IndexError]", sig.Labels)
	}
	if len(sig.Entities) != 0 {
		t.Errorf("entities = %v, want empty", sig.Entities)
	}
}

func TestClassify_NoColonPattern(t *testing.T) {
	// The warning pattern has no colon: the label falls back to the
	// pattern source with regex metacharacters stripped.
	sig := Classify("pandas SettingWithCopyWarning: a value is trying to be set on a copy")
	found := false
	for _, l := range sig.Labels {
		if l == "SettingWithCopyWarning" {
			found = true
		}
	}
	if !found {
		t.Errorf("labels = %v, want SettingWithCopyWarning present", sig.Labels)
	}
}

func TestClassify_CaseInsensitive(t *testing.T) {
	sig := Classify("keyerror: 'total'")
	if len(sig.Labels) != 1 || sig.Labels[0] != "KeyError" {
		t.Errorf("labels = %v, want [KeyError]", sig.Labels)
	}
	if len(sig.Entities) != 1 || sig.Entities[0] != "total" {
		t.Errorf("entities = %v, want [total]", sig.Entities)
	}
}

func TestClassify_Multiline(t *testing.T) {
	trace := "Traceback (most recent call last):\n" +
		"  File \"main.py\", line 3, in <module>\n" +
		"    print(rows[10])\n" +
		"IndexError: list index out of range"
	sig := Classify(trace)
	if len(sig.Labels) != 1 || sig.Labels[0] != "IndexError" {
		t.Errorf("labels = %v, want [IndexError]", sig.Labels)
	}
}

func TestClassify_MultiplePatterns(t *testing.T) {
	sig := Classify("KeyError: 'age'\nZeroDivisionError: division by zero")
	want := map[string]bool{"KeyError": true, "ZeroDivisionError": true}
	for _, l := range sig.Labels {
		if !want[l] {
			t.Errorf("unexpected label %q", l)
		}
		delete(want, l)
	}
	if len(want) != 0 {
		t.Errorf("missing labels: %v", want)
	}
}

func TestClassify_EntityDeduplication(t *testing.T) {
	sig := Classify("KeyError: 'age'\nNameError: name 'age' is not defined")
	if !reflect.DeepEqual(sig.Entities, []string{"age"}) {
		t.Errorf("entities = %v, want [age] (deduplicated)", sig.Entities)
	}
}

func TestClassify_NoMatch(t *testing.T) {
	sig := Classify("Some random message")
	if len(sig.Labels) != 0 {
		t.Errorf("labels = %v, want empty", sig.Labels)
	}
	if len(sig.Entities) != 0 {
		t.Errorf("entities = %v, want empty", sig.Entities)
	}
}

func TestClassify_EmptyInput(t *testing.T) {
	sig := Classify("")
	if len(sig.Labels) != 0 || len(sig.Entities) != 0 {
		t.Errorf("got %+v, want empty signal", sig)
	}
}
