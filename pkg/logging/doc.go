// Package logging はzerologベースのロガー生成を提供する。
//
// 全コンポーネントはここで生成したルートロガーから
// "component" フィールド付きの子ロガーを派生させて使用する。
package logging
